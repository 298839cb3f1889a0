package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/faeln1/go-checkin-api/internal/app/controllers"
	"github.com/faeln1/go-checkin-api/internal/app/repositories"
	"github.com/faeln1/go-checkin-api/internal/app/services"
	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"github.com/faeln1/go-checkin-api/internal/platform/realtime"
	waLog "go.mau.fi/whatsmeow/util/log"
	"golang.org/x/net/websocket"
)

func newTestServer(t *testing.T, token string) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	repo := repositories.NewInMemoryAttendanceRepo()
	people := []attendance.Person{
		{ID: 7, FirstName: "Ada", LastName: "Lovelace", CompanyName: "Analytical", CommunityID: 3},
		{ID: 9, FirstName: "Alan", LastName: "Turing", CommunityID: 3},
	}
	if err := repo.Seed(context.Background(), []attendance.Community{{ID: 3, Name: "GopherCon"}}, people); err != nil {
		t.Fatalf("seed: %v", err)
	}
	hub := realtime.NewHub(waLog.Noop)
	ctrl := controllers.NewEventController(
		services.NewAttendanceService(repo, hub, waLog.Noop),
		services.NewBadgeService(repo),
		services.NewReportService(repo, nil, waLog.Noop),
	)
	srv := httptest.NewServer(NewRouter(RouterConfig{
		EventCtrl:   ctrl,
		Hub:         hub,
		Logger:      waLog.Noop,
		MasterToken: token,
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func doRequest(t *testing.T, method, url, token string) *stdhttp.Response {
	t.Helper()
	req, err := stdhttp.NewRequest(method, url, bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouterReadEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp := doRequest(t, stdhttp.MethodGet, srv.URL+"/api/Event/communities", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("communities: expected 200, got %d", resp.StatusCode)
	}
	var communities []attendance.Community
	if err := json.NewDecoder(resp.Body).Decode(&communities); err != nil {
		t.Fatalf("decode communities: %v", err)
	}
	if len(communities) != 1 || communities[0].Name != "GopherCon" {
		t.Fatalf("unexpected communities %+v", communities)
	}

	resp = doRequest(t, stdhttp.MethodGet, srv.URL+"/api/Event/people/3", "")
	var people []attendance.Person
	if err := json.NewDecoder(resp.Body).Decode(&people); err != nil {
		t.Fatalf("decode people: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}

	resp = doRequest(t, stdhttp.MethodGet, srv.URL+"/api/Event/summary/3", "")
	var summary attendance.EventSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalPeople != 2 || summary.CommunityName != "GopherCon" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	cases := []struct {
		path string
		want int
	}{
		{"/api/Event/summary/99", stdhttp.StatusNotFound},
		{"/api/Event/people/abc", stdhttp.StatusBadRequest},
		{"/api/Event/unknown/3", stdhttp.StatusNotFound},
		{"/api/Event/report/3", stdhttp.StatusServiceUnavailable},
		{"/nope", stdhttp.StatusNotFound},
		{"/health", stdhttp.StatusOK},
	}
	for _, tc := range cases {
		if got := doRequest(t, stdhttp.MethodGet, srv.URL+tc.path, "").StatusCode; got != tc.want {
			t.Fatalf("GET %s: expected %d, got %d", tc.path, tc.want, got)
		}
	}
}

func TestRouterCheckInBroadcasts(t *testing.T) {
	srv, hub := newTestServer(t, "")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/eventHub?communityId=3"
	conn, err := websocket.Dial(wsURL, "", "http://localhost/")
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp := doRequest(t, stdhttp.MethodPost, srv.URL+"/api/Event/check-in/7", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("check-in: expected 200, got %d", resp.StatusCode)
	}
	var person attendance.Person
	if err := json.NewDecoder(resp.Body).Decode(&person); err != nil {
		t.Fatalf("decode person: %v", err)
	}
	if person.CheckInDate == nil || person.CheckOutDate != nil {
		t.Fatalf("unexpected timestamps %+v", person)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame attendance.EventFrame
	if err := websocket.JSON.Receive(conn, &frame); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if frame.Type != attendance.FrameEventUpdate || frame.Kind != attendance.KindCheckIn || frame.CommunityID != 3 || frame.PersonID != 7 {
		t.Fatalf("unexpected frame %+v", frame)
	}

	if got := doRequest(t, stdhttp.MethodPost, srv.URL+"/api/Event/check-out/42", "").StatusCode; got != stdhttp.StatusNotFound {
		t.Fatalf("check-out unknown: expected 404, got %d", got)
	}
}

func TestRouterMutationsRequireToken(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	if got := doRequest(t, stdhttp.MethodPost, srv.URL+"/api/Event/check-in/7", "").StatusCode; got != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", got)
	}
	if got := doRequest(t, stdhttp.MethodPost, srv.URL+"/api/Event/check-in/7", "wrong").StatusCode; got != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 with wrong token, got %d", got)
	}
	if got := doRequest(t, stdhttp.MethodPost, srv.URL+"/api/Event/check-in/7", "secret").StatusCode; got != stdhttp.StatusOK {
		t.Fatalf("expected 200 with token, got %d", got)
	}
	// reads stay public
	if got := doRequest(t, stdhttp.MethodGet, srv.URL+"/api/Event/people/3", "").StatusCode; got != stdhttp.StatusOK {
		t.Fatalf("expected public read, got %d", got)
	}
}

func TestRouterBadge(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp := doRequest(t, stdhttp.MethodGet, srv.URL+"/api/Event/badge/9?size=128", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if got := doRequest(t, stdhttp.MethodGet, srv.URL+"/api/Event/badge/42", "").StatusCode; got != stdhttp.StatusNotFound {
		t.Fatalf("expected 404 for unknown badge, got %d", got)
	}
}
