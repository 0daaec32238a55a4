package outboxinfra

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/outbox"
)

// WebhookPublisher delivers outbox entries by POSTing the event's JSON
// payload to its destination, treated as a target URL.
type WebhookPublisher struct {
	client *http.Client
}

func NewWebhookPublisher() *WebhookPublisher {
	return &WebhookPublisher{client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *WebhookPublisher) Publish(ctx context.Context, dest string, ev outbox.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest, bytes.NewReader(ev.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", ev.Type)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook destination %s returned %d", dest, resp.StatusCode)
	}
	return nil
}
