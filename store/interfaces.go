package store

import (
	"context"
	"time"
)

// Pagination holds common pagination parameters.
type Pagination struct {
	Offset int
	Limit  int
}

// DefaultPagination returns a Pagination with sensible defaults.
func DefaultPagination() Pagination {
	return Pagination{Offset: 0, Limit: 50}
}

// --- Subscription ---

// SubscriptionFilter specifies criteria for listing subscription records.
type SubscriptionFilter struct {
	Status     SubscriptionStatus
	PlanID     string
	Pagination Pagination
}

// SubscriptionStore defines persistence operations for subscription records.
// Upsert is the only write path: webhook redelivery and concurrent syncs must
// converge on a single row per tenant.
type SubscriptionStore interface {
	Get(ctx context.Context, tenantID string) (*SubscriptionRecord, error)
	GetByProcessorCustomer(ctx context.Context, customerID string) (*SubscriptionRecord, error)
	Upsert(ctx context.Context, tenantID string, p SubscriptionPatch) (*SubscriptionRecord, error)
	List(ctx context.Context, f SubscriptionFilter) ([]*SubscriptionRecord, error)
}

// --- Ledger ---

// LedgerFilter specifies criteria for listing ledger entries.
type LedgerFilter struct {
	TenantID   string
	Types      []LedgerEntryType
	From       *time.Time
	To         *time.Time
	Pagination Pagination
}

// LedgerStore defines persistence operations for the append-only credit
// ledger. Entries are immutable once appended.
type LedgerStore interface {
	Append(ctx context.Context, e *LedgerEntry) error
	// LastEntry returns the most recent entry for a tenant, or ErrNotFound
	// when the ledger is empty.
	LastEntry(ctx context.Context, tenantID string) (*LedgerEntry, error)
	// AllForTenant returns every entry for a tenant in append order.
	AllForTenant(ctx context.Context, tenantID string) ([]*LedgerEntry, error)
	// List returns entries newest-first with filters and pagination.
	List(ctx context.Context, f LedgerFilter) ([]*LedgerEntry, error)
}

// --- Budget alerts ---

// AlertConfigStore defines persistence operations for budget alert
// configurations, one per tenant.
type AlertConfigStore interface {
	Get(ctx context.Context, tenantID string) (*AlertConfig, error)
	Upsert(ctx context.Context, a *AlertConfig) error
	// MarkTriggered advances last_triggered_at. The timestamp never moves
	// backward; stale marks are ignored.
	MarkTriggered(ctx context.Context, tenantID string, at time.Time) error
	// ListEnabled returns every enabled configuration, for the periodic sweep.
	ListEnabled(ctx context.Context) ([]*AlertConfig, error)
}

// NotificationFilter specifies criteria for listing alert notifications.
type NotificationFilter struct {
	TenantID   string
	Since      *time.Time
	Pagination Pagination
}

// AlertNotificationStore defines persistence operations for alert
// notification records.
type AlertNotificationStore interface {
	Insert(ctx context.Context, n *AlertNotification) error
	List(ctx context.Context, f NotificationFilter) ([]*AlertNotification, error)
}

// --- Audit ---

// AuditFilter specifies criteria for querying audit entries.
type AuditFilter struct {
	TenantID   string
	Action     string
	Since      *time.Time
	Pagination Pagination
}

// AuditStore defines persistence operations for the billing audit trail.
type AuditStore interface {
	Record(ctx context.Context, e *AuditEntry) error
	Query(ctx context.Context, f AuditFilter) ([]*AuditEntry, error)
}
