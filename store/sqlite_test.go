package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSubscriptionStore_UpsertLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	subs := s.Subscriptions()

	r, err := subs.Upsert(ctx(), "t-1", SubscriptionPatch{})
	if err != nil {
		t.Fatal(err)
	}
	if r.PlanID != "free" || r.Status != SubscriptionTrialing {
		t.Fatalf("expected defaults free/trialing, got %s/%s", r.PlanID, r.Status)
	}

	start := time.Now().UTC()
	end := start.Add(30 * 24 * time.Hour)
	r, err = subs.Upsert(ctx(), "t-1", SubscriptionPatch{
		PlanID:              strPtr("professional"),
		ProcessorCustomerID: strPtr("cus_9"),
		Status:              statusPtr(SubscriptionActive),
		CurrentPeriodStart:  &start,
		CurrentPeriodEnd:    &end,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != SubscriptionActive || r.PlanID != "professional" {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.CurrentPeriodEnd == nil || !r.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("expected period end %v, got %v", end, r.CurrentPeriodEnd)
	}

	// Partial patch keeps everything it does not mention.
	r, err = subs.Upsert(ctx(), "t-1", SubscriptionPatch{Status: statusPtr(SubscriptionCancelled)})
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != SubscriptionCancelled {
		t.Fatalf("expected cancelled, got %s", r.Status)
	}
	if r.PlanID != "professional" {
		t.Fatalf("expected plan preserved, got %s", r.PlanID)
	}
	if r.ProcessorCustomerID == nil || *r.ProcessorCustomerID != "cus_9" {
		t.Fatalf("expected customer id preserved, got %v", r.ProcessorCustomerID)
	}
	if r.CurrentPeriodStart == nil || !r.CurrentPeriodStart.Equal(start) {
		t.Fatalf("expected period start preserved, got %v", r.CurrentPeriodStart)
	}
}

func TestSQLiteSubscriptionStore_GetByProcessorCustomer(t *testing.T) {
	s := newTestSQLite(t)
	subs := s.Subscriptions()
	_, _ = subs.Upsert(ctx(), "t-1", SubscriptionPatch{ProcessorCustomerID: strPtr("cus_lookup")})

	r, err := subs.GetByProcessorCustomer(ctx(), "cus_lookup")
	if err != nil {
		t.Fatal(err)
	}
	if r.TenantID != "t-1" {
		t.Fatalf("expected tenant t-1, got %s", r.TenantID)
	}

	if _, err := subs.GetByProcessorCustomer(ctx(), "cus_none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteLedgerStore_AppendAndRead(t *testing.T) {
	s := newTestSQLite(t)
	ledger := s.Ledger()

	if _, err := ledger.LastEntry(ctx(), "t-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty ledger, got %v", err)
	}

	entries := []*LedgerEntry{
		makeEntry("t-1", EntryCharge, 100, 100),
		makeEntry("t-1", EntryUsage, -10, 90),
		makeEntry("t-1", EntryBonus, 5, 95),
		makeEntry("t-2", EntryCharge, 42, 42),
	}
	for _, e := range entries {
		if err := ledger.Append(ctx(), e); err != nil {
			t.Fatal(err)
		}
	}

	last, err := ledger.LastEntry(ctx(), "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if last.Type != EntryBonus || last.BalanceAfter != 95 {
		t.Fatalf("expected bonus/95 last, got %s/%f", last.Type, last.BalanceAfter)
	}

	all, err := ledger.AllForTenant(ctx(), "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Type != EntryCharge || all[2].Type != EntryBonus {
		t.Fatalf("expected append order, got %s..%s", all[0].Type, all[2].Type)
	}

	usage, err := ledger.List(ctx(), LedgerFilter{TenantID: "t-1", Types: []LedgerEntryType{EntryUsage, EntryAdjustment}})
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 1 || usage[0].Amount != -10 {
		t.Fatalf("expected single usage entry, got %v", usage)
	}
}

func TestSQLiteAlertConfigStore_Lifecycle(t *testing.T) {
	s := newTestSQLite(t)
	alerts := s.Alerts()

	if _, err := alerts.Get(ctx(), "t-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	a := &AlertConfig{TenantID: "t-1", ThresholdPercent: 80, Channel: ChannelBoth, Enabled: true}
	if err := alerts.Upsert(ctx(), a); err != nil {
		t.Fatal(err)
	}

	later := time.Now().UTC()
	earlier := later.Add(-time.Hour)
	if err := alerts.MarkTriggered(ctx(), "t-1", later); err != nil {
		t.Fatal(err)
	}
	if err := alerts.MarkTriggered(ctx(), "t-1", earlier); err != nil {
		t.Fatal(err)
	}

	got, err := alerts.Get(ctx(), "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastTriggeredAt == nil || !got.LastTriggeredAt.Equal(later) {
		t.Fatalf("expected forward-only last_triggered_at %v, got %v", later, got.LastTriggeredAt)
	}

	// Config upsert must not clear the trigger timestamp.
	b := &AlertConfig{TenantID: "t-1", ThresholdPercent: 60, Channel: ChannelEmail, Enabled: false}
	if err := alerts.Upsert(ctx(), b); err != nil {
		t.Fatal(err)
	}
	if b.ID != got.ID {
		t.Fatalf("expected stable config id, got %v and %v", got.ID, b.ID)
	}
	if b.LastTriggeredAt == nil || !b.LastTriggeredAt.Equal(later) {
		t.Fatalf("expected last_triggered_at preserved, got %v", b.LastTriggeredAt)
	}
	if b.ThresholdPercent != 60 || b.Enabled {
		t.Fatalf("expected updated fields, got %+v", b)
	}
}

func TestSQLiteAlertConfigStore_MarkTriggered_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	err := s.Alerts().MarkTriggered(ctx(), "missing", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteAlertNotificationStore_InsertAndList(t *testing.T) {
	s := newTestSQLite(t)
	cfg := &AlertConfig{TenantID: "t-1", ThresholdPercent: 80, Channel: ChannelEmail, Enabled: true}
	_ = s.Alerts().Upsert(ctx(), cfg)

	older := &AlertNotification{
		AlertConfigID: cfg.ID, TenantID: "t-1",
		ThresholdPercent: 80, UsagePercent: 82.1, Channel: ChannelEmail,
		TriggeredAt: time.Now().UTC().Add(-time.Minute),
	}
	newer := &AlertNotification{
		AlertConfigID: cfg.ID, TenantID: "t-1",
		ThresholdPercent: 80, UsagePercent: 95.5, Channel: ChannelEmail,
		TriggeredAt: time.Now().UTC(),
	}
	if err := s.Notifications().Insert(ctx(), older); err != nil {
		t.Fatal(err)
	}
	if err := s.Notifications().Insert(ctx(), newer); err != nil {
		t.Fatal(err)
	}

	got, err := s.Notifications().List(ctx(), NotificationFilter{TenantID: "t-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if got[0].UsagePercent != 95.5 {
		t.Fatalf("expected newest first, got %f", got[0].UsagePercent)
	}
	if got[0].AlertConfigID != cfg.ID {
		t.Fatalf("expected config id %v, got %v", cfg.ID, got[0].AlertConfigID)
	}
}

func TestSQLiteAuditStore_RecordAndQuery(t *testing.T) {
	s := newTestSQLite(t)
	details, _ := json.Marshal(map[string]any{"amount": 12.5})
	e := &AuditEntry{TenantID: "t-1", Actor: "system", Action: "credits.deducted", Details: details}
	if err := s.Audit().Record(ctx(), e); err != nil {
		t.Fatal(err)
	}
	_ = s.Audit().Record(ctx(), &AuditEntry{TenantID: "t-1", Action: "alert.triggered", Severity: "warning"})

	got, err := s.Audit().Query(ctx(), AuditFilter{TenantID: "t-1", Action: "credits.deducted"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if string(got[0].Details) != string(details) {
		t.Fatalf("expected details round-trip, got %s", got[0].Details)
	}
	if got[0].Severity != "info" {
		t.Fatalf("expected default severity info, got %s", got[0].Severity)
	}
}
