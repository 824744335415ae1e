package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the local lifecycle status of a tenant's
// subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionTrialing  SubscriptionStatus = "trialing"
)

// ValidSubscriptionStatuses is the set of valid subscription status values.
var ValidSubscriptionStatuses = map[SubscriptionStatus]bool{
	SubscriptionActive:    true,
	SubscriptionCancelled: true,
	SubscriptionPastDue:   true,
	SubscriptionTrialing:  true,
}

// LedgerEntryType classifies a credit ledger entry.
type LedgerEntryType string

const (
	EntryCharge     LedgerEntryType = "charge"
	EntryUsage      LedgerEntryType = "usage"
	EntryRefund     LedgerEntryType = "refund"
	EntryBonus      LedgerEntryType = "bonus"
	EntryAdjustment LedgerEntryType = "adjustment"
)

// ValidLedgerEntryTypes is the set of valid ledger entry types.
var ValidLedgerEntryTypes = map[LedgerEntryType]bool{
	EntryCharge:     true,
	EntryUsage:      true,
	EntryRefund:     true,
	EntryBonus:      true,
	EntryAdjustment: true,
}

// AlertChannel selects where budget alert notifications are delivered.
type AlertChannel string

const (
	ChannelEmail AlertChannel = "email"
	ChannelChat  AlertChannel = "chat"
	ChannelBoth  AlertChannel = "both"
)

// ValidAlertChannels is the set of valid alert channel values.
var ValidAlertChannels = map[AlertChannel]bool{
	ChannelEmail: true,
	ChannelChat:  true,
	ChannelBoth:  true,
}

// SubscriptionRecord is the local mirror of a tenant's subscription with the
// payment processor. At most one row exists per tenant; rows are never
// hard-deleted, cancellation is a status.
type SubscriptionRecord struct {
	ID                      uuid.UUID          `json:"id"`
	TenantID                string             `json:"tenant_id"`
	PlanID                  string             `json:"plan_id"`
	ProcessorCustomerID     *string            `json:"processor_customer_id,omitempty"`
	ProcessorSubscriptionID *string            `json:"processor_subscription_id,omitempty"`
	Status                  SubscriptionStatus `json:"status"`
	CurrentPeriodStart      *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd        *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
}

// SubscriptionPatch carries the fields of a subscription upsert. Nil fields
// are left untouched on existing rows; on first insert they fall back to the
// column defaults (plan "free", status "trialing").
type SubscriptionPatch struct {
	PlanID                  *string
	ProcessorCustomerID     *string
	ProcessorSubscriptionID *string
	Status                  *SubscriptionStatus
	CurrentPeriodStart      *time.Time
	CurrentPeriodEnd        *time.Time
}

// LedgerEntry is one append-only row of a tenant's credit ledger. Amount is
// signed: credits carry positive amounts, usage carries negative amounts.
// BalanceAfter snapshots the running balance at append time.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Type          LedgerEntryType `json:"type"`
	Amount        float64         `json:"amount"`
	BalanceAfter  float64         `json:"balance_after"`
	Description   string          `json:"description,omitempty"`
	AgentID       *string         `json:"agent_id,omitempty"`
	ReferenceID   *string         `json:"reference_id,omitempty"`
	ReferenceType *string         `json:"reference_type,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AlertConfig is a tenant's budget alert configuration. At most one row
// exists per tenant. LastTriggeredAt only ever moves forward.
type AlertConfig struct {
	ID               uuid.UUID    `json:"id"`
	TenantID         string       `json:"tenant_id"`
	ThresholdPercent int          `json:"threshold_percent"`
	Channel          AlertChannel `json:"channel"`
	Enabled          bool         `json:"enabled"`
	LastTriggeredAt  *time.Time   `json:"last_triggered_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// AlertNotification records one detected budget breach. Insert-only;
// retained for audit.
type AlertNotification struct {
	ID               uuid.UUID    `json:"id"`
	AlertConfigID    uuid.UUID    `json:"alert_config_id"`
	TenantID         string       `json:"tenant_id"`
	ThresholdPercent int          `json:"threshold_percent"`
	UsagePercent     float64      `json:"usage_percent"`
	Channel          AlertChannel `json:"channel"`
	TriggeredAt      time.Time    `json:"triggered_at"`
}

// AuditEntry records one billing-relevant mutation for the audit trail.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Actor     string          `json:"actor,omitempty"`
	Action    string          `json:"action"`
	Severity  string          `json:"severity"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
