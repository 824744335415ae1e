package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/GoCodeAlone/console/store"
)

// DefaultEmailSubject is the NATS subject the external mailer consumes.
const DefaultEmailSubject = "console.notifications.email"

// Channel delivers one alert notification to one destination. Implementations
// make a single attempt; retries belong to the Deliverer.
type Channel interface {
	// Name identifies the channel in delivery records and metrics.
	Name() string
	Send(ctx context.Context, n *store.AlertNotification) error
}

// chatMessage is the JSON body posted to the chat webhook. The text field
// keeps the payload compatible with incoming-webhook style receivers.
type chatMessage struct {
	Text             string    `json:"text"`
	TenantID         string    `json:"tenant_id"`
	ThresholdPercent int       `json:"threshold_percent"`
	UsagePercent     float64   `json:"usage_percent"`
	TriggeredAt      time.Time `json:"triggered_at"`
}

// ChatChannel posts budget alerts to a configured chat webhook URL.
type ChatChannel struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewChatChannel creates a chat channel targeting the given webhook URL.
func NewChatChannel(url string, logger *slog.Logger) *ChatChannel {
	return &ChatChannel{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// SetClient sets a custom HTTP client (useful for testing).
func (c *ChatChannel) SetClient(client *http.Client) {
	c.client = client
}

// Name implements Channel.
func (c *ChatChannel) Name() string { return "chat" }

// Send posts the notification as JSON. Any non-2xx response is an error.
func (c *ChatChannel) Send(ctx context.Context, n *store.AlertNotification) error {
	payload, err := json.Marshal(chatMessage{
		Text: fmt.Sprintf("Budget alert for %s: usage at %.1f%% of the monthly limit (threshold %d%%)",
			n.TenantID, n.UsagePercent, n.ThresholdPercent),
		TenantID:         n.TenantID,
		ThresholdPercent: n.ThresholdPercent,
		UsagePercent:     n.UsagePercent,
		TriggeredAt:      n.TriggeredAt,
	})
	if err != nil {
		return fmt.Errorf("notify: encode chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post chat message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: chat webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// publisher is the part of the NATS connection the email channel uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// emailMessage is the envelope published for the external mailer.
type emailMessage struct {
	TenantID         string    `json:"tenant_id"`
	Subject          string    `json:"subject"`
	Body             string    `json:"body"`
	ThresholdPercent int       `json:"threshold_percent"`
	UsagePercent     float64   `json:"usage_percent"`
	TriggeredAt      time.Time `json:"triggered_at"`
}

// EmailChannel hands alert emails to the external mailer by publishing an
// envelope to a NATS subject. The mailer owns templating and recipients.
type EmailChannel struct {
	pub     publisher
	subject string
	logger  *slog.Logger
}

// NewEmailChannel creates an email channel over an established NATS
// connection. An empty subject falls back to DefaultEmailSubject.
func NewEmailChannel(conn *nats.Conn, subject string, logger *slog.Logger) *EmailChannel {
	if subject == "" {
		subject = DefaultEmailSubject
	}
	return &EmailChannel{pub: conn, subject: subject, logger: logger}
}

// Name implements Channel.
func (e *EmailChannel) Name() string { return "email" }

// Send publishes the email envelope. Delivery to the mailbox is owned by the
// mailer consuming the subject.
func (e *EmailChannel) Send(_ context.Context, n *store.AlertNotification) error {
	payload, err := json.Marshal(emailMessage{
		TenantID: n.TenantID,
		Subject:  fmt.Sprintf("Budget alert: usage at %.1f%% of monthly credits", n.UsagePercent),
		Body: fmt.Sprintf("Tenant %s has used %.1f%% of its monthly credit allowance, crossing the configured %d%% alert threshold.",
			n.TenantID, n.UsagePercent, n.ThresholdPercent),
		ThresholdPercent: n.ThresholdPercent,
		UsagePercent:     n.UsagePercent,
		TriggeredAt:      n.TriggeredAt,
	})
	if err != nil {
		return fmt.Errorf("notify: encode email envelope: %w", err)
	}

	if err := e.pub.Publish(e.subject, payload); err != nil {
		return fmt.Errorf("notify: publish to %q: %w", e.subject, err)
	}

	e.logger.Debug("email envelope published",
		slog.String("subject", e.subject),
		slog.String("tenant_id", n.TenantID))
	return nil
}
