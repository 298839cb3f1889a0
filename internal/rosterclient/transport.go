package rosterclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"golang.org/x/net/websocket"
)

var ErrTransportClosed = errors.New("transport closed")

// Conn is one established push connection.
type Conn interface {
	// Receive blocks until the next change event arrives or the connection
	// fails.
	Receive() (attendance.ChangeEvent, error)
	Close() error
}

// Dialer opens push connections. communityID only tags the connection; the
// server delivers every event regardless.
type Dialer interface {
	Dial(ctx context.Context, communityID int) (Conn, error)
}

// WebSocketDialer connects to the server's /eventHub endpoint.
type WebSocketDialer struct {
	URL    string
	Origin string
}

func (d WebSocketDialer) Dial(ctx context.Context, communityID int) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse hub url: %w", err)
	}
	q := u.Query()
	q.Set("communityId", strconv.Itoa(communityID))
	u.RawQuery = q.Encode()

	origin := d.Origin
	if origin == "" {
		origin = "http://localhost/"
	}
	cfg, err := websocket.NewConfig(u.String(), origin)
	if err != nil {
		return nil, fmt.Errorf("hub config: %w", err)
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Receive() (attendance.ChangeEvent, error) {
	for {
		var frame attendance.EventFrame
		if err := websocket.JSON.Receive(c.ws, &frame); err != nil {
			if errors.Is(err, io.EOF) {
				return attendance.ChangeEvent{}, ErrTransportClosed
			}
			return attendance.ChangeEvent{}, err
		}
		if frame.Type != attendance.FrameEventUpdate {
			continue
		}
		return frame.ChangeEvent, nil
	}
}

func (c *wsConn) Close() error { return c.ws.Close() }
