package realtime

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"github.com/google/uuid"
	waLog "go.mau.fi/whatsmeow/util/log"
	"golang.org/x/net/websocket"
)

const defaultWriteTimeout = 5 * time.Second

// Session is one connected viewer. CommunityID is the scope the viewer asked
// for; it is kept for logging only, the hub never filters on it.
type Session struct {
	ID          string
	CommunityID int
	RemoteAddr  string
	ConnectedAt time.Time

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *Session) send(frame attendance.EventFrame, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return websocket.JSON.Send(s.conn, frame)
}

// Hub keeps every live WebSocket session and fans events out to all of them.
type Hub struct {
	mu             sync.RWMutex
	sessions       map[string]*Session // key: session id
	log            waLog.Logger
	writeTimeout   time.Duration
	allowedOrigins []string
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithWriteTimeout bounds each per-session write during a broadcast.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithAllowedOrigins restricts the handshake Origin header to the given
// origins plus the server's own host. Empty entries are ignored; "*" or no
// origins allows every origin.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				h.allowedOrigins = append(h.allowedOrigins, strings.TrimRight(o, "/"))
			}
		}
	}
}

func NewHub(log waLog.Logger, opts ...HubOption) *Hub {
	h := &Hub{sessions: make(map[string]*Session), log: log, writeTimeout: defaultWriteTimeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handler upgrades GET requests to WebSocket sessions. The optional
// communityId query parameter tags the session.
func (h *Hub) Handler() http.Handler {
	server := websocket.Server{
		Handshake: h.handshake,
		Handler:   h.serve,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		server.ServeHTTP(w, r)
	})
}

func (h *Hub) handshake(cfg *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(cfg, r)
	if err == nil {
		cfg.Origin = origin
	}
	if h.originAllowed(origin, r.Host) {
		return nil
	}
	if h.log != nil {
		h.log.Warnf("event hub rejected origin %v from %s", origin, r.RemoteAddr)
	}
	return websocket.ErrBadWebSocketOrigin
}

// originAllowed accepts same-host origins (non-browser viewers) and the
// configured browser origins.
func (h *Hub) originAllowed(origin *url.URL, host string) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	if origin != nil && strings.EqualFold(origin.Host, host) {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" {
			return true
		}
		if origin != nil && strings.EqualFold(allowed, origin.Scheme+"://"+origin.Host) {
			return true
		}
	}
	return false
}

func (h *Hub) serve(conn *websocket.Conn) {
	sess := &Session{ID: uuid.NewString(), ConnectedAt: time.Now(), conn: conn}
	if req := conn.Request(); req != nil {
		sess.RemoteAddr = req.RemoteAddr
		if raw := strings.TrimSpace(req.URL.Query().Get("communityId")); raw != "" {
			sess.CommunityID, _ = strconv.Atoi(raw)
		}
	}
	h.register(sess)
	defer h.drop(sess)

	// Viewers never send anything meaningful; reading only detects closure.
	var discard string
	for {
		if err := websocket.Message.Receive(conn, &discard); err != nil {
			if err != io.EOF && h.log != nil {
				h.log.Debugf("session %s read ended: %v", sess.ID, err)
			}
			return
		}
	}
}

func (h *Hub) register(sess *Session) {
	h.mu.Lock()
	h.sessions[sess.ID] = sess
	total := len(h.sessions)
	h.mu.Unlock()
	if h.log != nil {
		h.log.Infof("session %s connected community=%d remote=%s (total=%d)", sess.ID, sess.CommunityID, sess.RemoteAddr, total)
	}
}

func (h *Hub) drop(sess *Session) {
	h.mu.Lock()
	_, ok := h.sessions[sess.ID]
	delete(h.sessions, sess.ID)
	total := len(h.sessions)
	h.mu.Unlock()
	_ = sess.conn.Close()
	if ok && h.log != nil {
		h.log.Infof("session %s disconnected (total=%d)", sess.ID, total)
	}
}

// Broadcast writes evt to every session connected right now. A failed write
// drops that session; nothing is retried or kept for later. ctx is ignored;
// each write is bounded by the hub's write timeout.
func (h *Hub) Broadcast(_ context.Context, evt attendance.ChangeEvent) {
	sessions := h.List()
	if len(sessions) == 0 {
		return
	}
	frame := attendance.NewEventFrame(evt)
	delivered := 0
	for _, sess := range sessions {
		if err := sess.send(frame, h.writeTimeout); err != nil {
			if h.log != nil {
				h.log.Warnf("broadcast %s to session %s failed: %v", evt.Kind, sess.ID, err)
			}
			h.drop(sess)
			continue
		}
		delivered++
	}
	if h.log != nil {
		h.log.Debugf("broadcast %s community=%d person=%d delivered=%d/%d", evt.Kind, evt.CommunityID, evt.PersonID, delivered, len(sessions))
	}
}

// List returns a snapshot of the connected sessions.
func (h *Hub) List() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns how many sessions are connected.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close disconnects every session; used on shutdown.
func (h *Hub) Close() {
	for _, sess := range h.List() {
		h.drop(sess)
	}
}
