package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// LogNotifier writes announcements to the log. Used when no webhook is set.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Announce(_ context.Context, message string) error {
	n.log.Info("announcement", slog.String("message", message))
	return nil
}

// WebhookNotifier posts announcements to a chat webhook as {"content": ...}.
// Delivery is attempted once.
type WebhookNotifier struct {
	client *http.Client
	url    string
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

func (n *WebhookNotifier) Announce(ctx context.Context, message string) error {
	const op = "notifier.WebhookNotifier.Announce"

	body, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}
	return nil
}
