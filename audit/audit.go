package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/GoCodeAlone/console/store"
)

// EventType classifies billing-relevant audit events.
type EventType string

const (
	EventLedger       EventType = "ledger"
	EventSubscription EventType = "subscription"
	EventAlert        EventType = "alert"
	EventWebhook      EventType = "webhook"
	EventConfigChange EventType = "config_change"
)

// Event is a single audit log entry.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Success   bool           `json:"success"`
	Detail    string         `json:"detail,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger records billing audit events as structured JSON lines and, when a
// sink is configured, as rows in the audit store. Sink failures are logged
// and never propagated; the audit trail must not block billing mutations.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
	sink   store.AuditStore
	slog   *slog.Logger
}

// NewLogger creates a Logger that writes JSON events to the given writer.
// If w is nil, it defaults to os.Stdout. sink may be nil.
func NewLogger(w io.Writer, sink store.AuditStore) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		writer: w,
		sink:   sink,
		slog:   slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// Log records an audit event. It is safe for concurrent use.
func (l *Logger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		l.slog.Error("failed to marshal audit event", "error", err)
		return
	}

	l.mu.Lock()
	// Write one JSON line per event
	line := append(data, '\n')
	if _, err := l.writer.Write(line); err != nil {
		l.slog.Error("failed to write audit event", "error", err)
	}
	l.mu.Unlock()

	if l.sink == nil {
		return
	}
	severity := "info"
	if !event.Success {
		severity = "warning"
	}
	entry := &store.AuditEntry{
		TenantID: event.TenantID,
		Actor:    event.Actor,
		Action:   event.Action,
		Severity: severity,
		Details:  data,
	}
	if err := l.sink.Record(ctx, entry); err != nil {
		l.slog.Error("failed to persist audit event", "action", event.Action, "error", err)
	}
}

// LogLedgerMutation records a credit ledger write.
func (l *Logger) LogLedgerMutation(ctx context.Context, tenantID, actor, action string, amount, balanceAfter float64) {
	l.Log(ctx, Event{
		Type:     EventLedger,
		Action:   action,
		TenantID: tenantID,
		Actor:    actor,
		Success:  true,
		Metadata: map[string]any{"amount": amount, "balance_after": balanceAfter},
	})
}

// LogSubscriptionSync records a subscription state change.
func (l *Logger) LogSubscriptionSync(ctx context.Context, tenantID, action, status, detail string) {
	l.Log(ctx, Event{
		Type:     EventSubscription,
		Action:   action,
		TenantID: tenantID,
		Success:  true,
		Detail:   detail,
		Metadata: map[string]any{"status": status},
	})
}

// LogAlertTriggered records a budget alert breach.
func (l *Logger) LogAlertTriggered(ctx context.Context, tenantID string, usagePercent float64, thresholdPercent int) {
	l.Log(ctx, Event{
		Type:     EventAlert,
		Action:   "alert.triggered",
		TenantID: tenantID,
		Success:  true,
		Metadata: map[string]any{"usage_percent": usagePercent, "threshold_percent": thresholdPercent},
	})
}

// LogWebhook records the outcome of a processed webhook event.
func (l *Logger) LogWebhook(ctx context.Context, action, eventID string, verified, success bool) {
	l.Log(ctx, Event{
		Type:    EventWebhook,
		Action:  action,
		Success: success,
		Metadata: map[string]any{
			"event_id": eventID,
			"verified": verified,
		},
	})
}

// LogConfigChange records a billing configuration change.
func (l *Logger) LogConfigChange(ctx context.Context, tenantID, actor, detail string) {
	l.Log(ctx, Event{
		Type:     EventConfigChange,
		Action:   "config_change",
		TenantID: tenantID,
		Actor:    actor,
		Success:  true,
		Detail:   detail,
	})
}
