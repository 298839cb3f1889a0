package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const webhookTimeout = 10 * time.Second

// webhookPayload é o corpo enviado ao webhook de presença.
type webhookPayload struct {
	Event      attendance.ChangeEvent `json:"event"`
	OccurredAt time.Time              `json:"occurredAt"`
}

type webhookBroadcaster struct {
	client *http.Client
	url    string
	token  string
	log    waLog.Logger
	now    func() time.Time
}

// NewWebhookBroadcaster cria um broadcaster que envia cada evento para uma URL
// fixa (via env). Retorna nil quando a URL está vazia.
func NewWebhookBroadcaster(url, token string, client *http.Client, log waLog.Logger) EventBroadcaster {
	cleanURL := strings.TrimSpace(url)
	if cleanURL == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	if log == nil {
		log = waLog.Noop
	}
	return &webhookBroadcaster{client: client, url: cleanURL, token: strings.TrimSpace(token), log: log, now: time.Now}
}

// Broadcast posts in the background; the triggering request never waits for
// the webhook.
func (d *webhookBroadcaster) Broadcast(_ context.Context, evt attendance.ChangeEvent) {
	payload := webhookPayload{Event: evt, OccurredAt: d.now().UTC()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		if err := d.post(ctx, payload); err != nil {
			d.log.Warnf("falha ao enviar evento %s da pessoa %d: %v", evt.Kind, evt.PersonID, err)
		}
	}()
}

func (d *webhookBroadcaster) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	d.log.Debugf("webhook entregue com status %d", resp.StatusCode)
	return nil
}
