package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Webhook posts messages as Markdown JSON to a generic incoming webhook
// (Slack, Discord and most chat relays accept one of the two fields).
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook channel.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

// Notify converts the HTML message to Markdown and posts it.
func (w *Webhook) Notify(ctx context.Context, message string) error {
	md, err := ToMarkdown(message)
	if err != nil {
		return &DeliveryError{Channel: "webhook", Err: err}
	}

	body, err := json.Marshal(webhookPayload{Text: md, Content: md})
	if err != nil {
		return &DeliveryError{Channel: "webhook", Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Channel: "webhook", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{Channel: "webhook", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &DeliveryError{Channel: "webhook", StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(data)))}
	}
	return nil
}

// ToMarkdown converts a Telegram HTML message to Markdown. Line breaks are
// significant in Telegram HTML, so they become <br> before conversion.
func ToMarkdown(message string) (string, error) {
	if message == "" {
		return "", nil
	}
	markdown, err := htmltomarkdown.ConvertString(strings.ReplaceAll(message, "\n", "<br>"))
	if err != nil {
		return "", fmt.Errorf("failed to convert message to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
