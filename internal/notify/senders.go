package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// LogSender writes notices to the log. It is the fallback when no chat
// gateway is configured, so dev runs still show who would have been told
// what.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, notice Notice) error {
	s.logger.InfoContext(ctx, "notice",
		slog.Int64("recipient", notice.Recipient),
		slog.String("subject", notice.Subject),
		slog.Any("fields", notice.Fields))
	return nil
}

// WebhookSender posts notices to the chat gateway, which renders them into
// platform messages.
type WebhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSender) Send(ctx context.Context, notice Notice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notice: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("deliver notice: gateway returned %d", resp.StatusCode)
	}
	return nil
}
