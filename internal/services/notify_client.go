package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/escrow-platform/backend/internal/events"
	"go.uber.org/zap"
)

// NotifyClient forwards escrow events to an external webhook (a Telegram bot
// backend, a mailer, whatever the deployment points it at). Best effort: a
// failed delivery is logged and dropped.
type NotifyClient struct {
	webhookURL string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifyClient(webhookURL string, log *zap.Logger) *NotifyClient {
	return &NotifyClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// Enabled reports whether a webhook is configured.
func (c *NotifyClient) Enabled() bool {
	return c.webhookURL != ""
}

// Notify delivers one event to the webhook as a JSON POST.
func (c *NotifyClient) Notify(ctx context.Context, event events.Event) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	c.log.Debug("event delivered to webhook",
		zap.String("type", event.Type),
		zap.String("url", c.webhookURL),
	)
	return nil
}
