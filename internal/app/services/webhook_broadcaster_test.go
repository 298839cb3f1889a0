package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	waLog "go.mau.fi/whatsmeow/util/log"
)

func TestWebhookBroadcasterPostsEvent(t *testing.T) {
	type received struct {
		auth    string
		payload webhookPayload
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		got <- received{auth: r.Header.Get("Authorization"), payload: p}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b := NewWebhookBroadcaster(srv.URL, "tok", nil, waLog.Noop)
	evt := attendance.ChangeEvent{Kind: attendance.KindCheckOut, CommunityID: 3, PersonID: 7}
	b.Broadcast(context.Background(), evt)

	select {
	case r := <-got:
		if r.auth != "Bearer tok" {
			t.Fatalf("unexpected auth header %q", r.auth)
		}
		if r.payload.Event != evt {
			t.Fatalf("unexpected event %+v", r.payload.Event)
		}
		if r.payload.OccurredAt.IsZero() {
			t.Fatalf("expected occurredAt")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}

func TestWebhookBroadcasterDisabledWithoutURL(t *testing.T) {
	if b := NewWebhookBroadcaster("  ", "", nil, nil); b != nil {
		t.Fatalf("expected nil broadcaster for empty url")
	}
}
