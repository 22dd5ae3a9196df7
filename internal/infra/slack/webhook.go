// internal/infra/slack/webhook.go
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"review_monitor/internal/domain/purchaselink"
	"review_monitor/internal/domain/review"
)

// WebhookClient posts block messages to one Slack incoming webhook.
type WebhookClient struct {
	webhookURL string
	client     *http.Client
	loc        *time.Location // zone used to display times
	now        func() time.Time
}

var (
	_ review.Notifier       = (*WebhookClient)(nil)
	_ purchaselink.Notifier = (*WebhookClient)(nil)
)

func NewWebhookClient(webhookURL string, loc *time.Location) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		loc:        loc,
		now:        time.Now,
	}
}

// Notify announces a new review.
func (c *WebhookClient) Notify(ctx context.Context, candidate review.Candidate) error {
	return c.post(ctx, reviewMessage(candidate, c.loc))
}

// NotifyViolations sends one batch message for all purchase-link notices.
func (c *WebhookClient) NotifyViolations(ctx context.Context, notices []purchaselink.Notice) error {
	if len(notices) == 0 {
		return nil
	}
	return c.post(ctx, violationsMessage(notices, c.now(), c.loc))
}

func (c *WebhookClient) post(ctx context.Context, msg message) error {
	if c.webhookURL == "" {
		return fmt.Errorf("slack webhook misconfigured")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack error: %s %s", resp.Status, bytes.TrimSpace(detail))
	}
	return nil
}
