package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/console/store"
)

func TestNewLogger_DefaultWriter(t *testing.T) {
	l := NewLogger(nil, nil)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, nil)

	ctx := context.Background()
	l.Log(ctx, Event{
		Type:     EventLedger,
		Action:   "credits.deducted",
		TenantID: "t-1",
		Actor:    "agent-7",
		Success:  true,
		Detail:   "execution cost",
	})

	output := buf.String()
	if output == "" {
		t.Fatal("expected output, got empty string")
	}

	var event Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &event); err != nil {
		t.Fatalf("failed to parse audit event JSON: %v", err)
	}

	if event.Type != EventLedger {
		t.Errorf("expected type %q, got %q", EventLedger, event.Type)
	}
	if event.Action != "credits.deducted" {
		t.Errorf("expected action 'credits.deducted', got %q", event.Action)
	}
	if event.TenantID != "t-1" {
		t.Errorf("expected tenant 't-1', got %q", event.TenantID)
	}
	if !event.Success {
		t.Error("expected success=true")
	}
	if event.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
}

func TestLogger_Log_PreservesTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, nil)

	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	l.Log(context.Background(), Event{
		Timestamp: ts,
		Type:      EventSubscription,
		Action:    "subscription.synced",
		Success:   true,
	})

	var event Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &event); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if !event.Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, event.Timestamp)
	}
}

func TestLogger_StoreSink(t *testing.T) {
	var buf bytes.Buffer
	sink := store.NewMockAuditStore()
	l := NewLogger(&buf, sink)

	l.LogLedgerMutation(context.Background(), "t-1", "agent-3", "credits.deducted", -2.5, 97.5)

	entries, err := sink.Query(context.Background(), store.AuditFilter{TenantID: "t-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", len(entries))
	}
	if entries[0].Action != "credits.deducted" {
		t.Errorf("expected action 'credits.deducted', got %q", entries[0].Action)
	}
	if entries[0].Severity != "info" {
		t.Errorf("expected severity info, got %q", entries[0].Severity)
	}
	if entries[0].Actor != "agent-3" {
		t.Errorf("expected actor 'agent-3', got %q", entries[0].Actor)
	}
}

func TestLogger_StoreSink_FailureSeverity(t *testing.T) {
	var buf bytes.Buffer
	sink := store.NewMockAuditStore()
	l := NewLogger(&buf, sink)

	l.LogWebhook(context.Background(), "webhook.rejected", "evt_1", true, false)

	entries, _ := sink.Query(context.Background(), store.AuditFilter{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Severity != "warning" {
		t.Errorf("expected severity warning for failed event, got %q", entries[0].Severity)
	}
}

func TestLogger_LogSubscriptionSync(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, nil)

	l.LogSubscriptionSync(context.Background(), "t-1", "subscription.synced", "past_due", "invoice payment failed")

	var event Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &event); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if event.Type != EventSubscription {
		t.Errorf("expected type %q, got %q", EventSubscription, event.Type)
	}
	if event.Metadata["status"] != "past_due" {
		t.Errorf("expected status metadata, got %v", event.Metadata)
	}
}

func TestLogger_LogAlertTriggered(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, nil)

	l.LogAlertTriggered(context.Background(), "t-1", 87.5, 80)

	var event Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &event); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if event.Type != EventAlert {
		t.Errorf("expected type %q, got %q", EventAlert, event.Type)
	}
	if event.Action != "alert.triggered" {
		t.Errorf("expected action 'alert.triggered', got %q", event.Action)
	}
	if event.Metadata["usage_percent"] != 87.5 {
		t.Errorf("expected usage_percent 87.5, got %v", event.Metadata["usage_percent"])
	}
}

func TestLogger_MultipleEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, nil)
	ctx := context.Background()

	l.LogLedgerMutation(ctx, "t-1", "", "credits.charged", 100, 100)
	l.LogSubscriptionSync(ctx, "t-1", "subscription.synced", "active", "")
	l.LogConfigChange(ctx, "t-1", "owner", "alert threshold 80 -> 90")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	// Verify each line is valid JSON
	for i, line := range lines {
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Errorf("line %d: invalid JSON: %v", i, err)
		}
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, nil)
	ctx := context.Background()

	done := make(chan struct{})
	for i := range 10 {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			l.LogLedgerMutation(ctx, "t-1", "", "credits.deducted", -1, float64(n))
		}(i)
	}

	for range 10 {
		<-done
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 10 {
		t.Errorf("expected 10 lines from concurrent writes, got %d", len(lines))
	}
}
