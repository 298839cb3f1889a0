package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"github.com/faeln1/go-checkin-api/pkg/logger"
	"golang.org/x/net/websocket"
)

func dialHub(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/eventHub" + query
	conn, err := websocket.Dial(wsURL, "", "http://localhost/")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d sessions, got %d", want, hub.Count())
}

func TestHubBroadcastReachesEverySession(t *testing.T) {
	hub := NewHub(logger.InitForTests().App)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	first := dialHub(t, srv, "?communityId=3")
	second := dialHub(t, srv, "?communityId=4")
	waitForCount(t, hub, 2)

	hub.Broadcast(context.Background(), attendance.ChangeEvent{Kind: attendance.KindCheckIn, CommunityID: 3, PersonID: 7})

	for i, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame attendance.EventFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			t.Fatalf("session %d receive: %v", i, err)
		}
		if frame.Type != attendance.FrameEventUpdate {
			t.Fatalf("session %d: unexpected frame type %q", i, frame.Type)
		}
		if frame.Kind != attendance.KindCheckIn || frame.CommunityID != 3 || frame.PersonID != 7 {
			t.Fatalf("session %d: unexpected event %+v", i, frame.ChangeEvent)
		}
	}
}

func TestHubFrameWireFormat(t *testing.T) {
	hub := NewHub(logger.InitForTests().App)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	conn := dialHub(t, srv, "")
	waitForCount(t, hub, 1)

	hub.Broadcast(context.Background(), attendance.ChangeEvent{Kind: attendance.KindCheckOut, CommunityID: 3, PersonID: 9})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var raw string
	if err := websocket.Message.Receive(conn, &raw); err != nil {
		t.Fatalf("receive: %v", err)
	}
	want := `{"type":"ReceiveEventUpdate","eventType":"check-out","communityId":3,"personId":9}`
	if strings.TrimSpace(raw) != want {
		t.Fatalf("unexpected frame\n got: %s\nwant: %s", raw, want)
	}
}

func TestHubBroadcastIgnoresCanceledContext(t *testing.T) {
	hub := NewHub(logger.InitForTests().App)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	conn := dialHub(t, srv, "?communityId=3")
	waitForCount(t, hub, 1)

	// the request that committed the write may already be gone
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Broadcast(ctx, attendance.ChangeEvent{Kind: attendance.KindCheckIn, CommunityID: 3, PersonID: 7})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame attendance.EventFrame
	if err := websocket.JSON.Receive(conn, &frame); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if frame.Kind != attendance.KindCheckIn || frame.PersonID != 7 {
		t.Fatalf("unexpected event %+v", frame.ChangeEvent)
	}
	if hub.Count() != 1 {
		t.Fatalf("session should stay registered, got %d", hub.Count())
	}
}

func TestHubBroadcastWithoutSessionsIsNoop(t *testing.T) {
	hub := NewHub(logger.InitForTests().App)
	hub.Broadcast(context.Background(), attendance.ChangeEvent{Kind: attendance.KindCheckIn, CommunityID: 1, PersonID: 1})
	if hub.Count() != 0 {
		t.Fatalf("expected no sessions")
	}
}

func TestHubDropsClosedSessions(t *testing.T) {
	hub := NewHub(logger.InitForTests().App)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dialHub(t, srv, "")
	waitForCount(t, hub, 1)
	_ = conn.Close()
	waitForCount(t, hub, 0)
}

func TestHubRejectsUnknownOrigin(t *testing.T) {
	hub := NewHub(logger.InitForTests().App, WithAllowedOrigins("http://allowed.test"))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	if _, err := websocket.Dial(wsURL, "", "http://evil.test"); err == nil {
		t.Fatalf("expected handshake to fail for foreign origin")
	}
	conn, err := websocket.Dial(wsURL, "", "http://allowed.test")
	if err != nil {
		t.Fatalf("dial allowed origin: %v", err)
	}
	_ = conn.Close()

	sameHost, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial same-host origin: %v", err)
	}
	_ = sameHost.Close()
}
