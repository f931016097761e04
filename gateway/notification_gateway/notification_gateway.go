package notification_gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/notification_port"
)

// WebhookNotifier posts terminal transaction payloads to a configured
// webhook URL. Notification failures never fail the transaction; they are
// logged and dropped.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger logger_port.LoggerPort
}

// Ensure WebhookNotifier implements the notification port
var _ notification_port.NotificationPort = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a webhook notifier. An empty URL disables
// delivery; terminal events are then only logged.
func NewWebhookNotifier(url string, logger logger_port.LoggerPort) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// NotifyTerminal delivers the payload to the webhook
func (n *WebhookNotifier) NotifyTerminal(ctx context.Context, payload *domain.NotificationPayload) error {
	n.logger.InfoWithContext("transaction reached terminal status", map[string]interface{}{
		"id":      payload.ID,
		"package": payload.Package,
		"status":  string(payload.Status),
	})

	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.WarnWithContext("notification delivery failed", map[string]interface{}{
			"id":    payload.ID,
			"error": err.Error(),
		})
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.WarnWithContext("notification endpoint rejected payload", map[string]interface{}{
			"id":     payload.ID,
			"status": resp.StatusCode,
		})
	}
	return nil
}
