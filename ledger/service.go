package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/GoCodeAlone/console/audit"
	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/metrics"
	"github.com/GoCodeAlone/console/store"
)

// round6 rounds to 6 decimal places. Amounts are rounded once at write time;
// presentation rounding to 2 places happens in the aggregator.
func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

// InsufficientCreditsError is returned by Deduct when the tenant's balance
// cannot cover the requested amount.
type InsufficientCreditsError struct {
	Balance  float64
	Required float64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("ledger: insufficient credits: balance %.6f, required %.6f", e.Balance, e.Required)
}

// Ref ties a ledger entry to the resource that caused it.
type Ref struct {
	ID   string
	Type string
}

// CacheInvalidator drops cached derived views for a tenant after a ledger
// write. Satisfied by the overview cache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID string)
}

// Service owns all credit ledger writes. Every mutation snapshots the
// resulting balance on the entry and leaves an audit record. Writes are
// serialized in-process so the balance snapshot read and the append are one
// critical section; the ledger itself stays append-only.
type Service struct {
	mu          sync.Mutex
	entries     store.LedgerStore
	logger      *slog.Logger
	collector   *metrics.Collector
	auditLog    *audit.Logger
	invalidator CacheInvalidator
}

// NewService creates a ledger Service. collector and auditLog may be nil.
func NewService(entries store.LedgerStore, logger *slog.Logger, collector *metrics.Collector, auditLog *audit.Logger) *Service {
	return &Service{
		entries:   entries,
		logger:    logger,
		collector: collector,
		auditLog:  auditLog,
	}
}

// SetInvalidator wires cache invalidation for appended entries.
func (s *Service) SetInvalidator(inv CacheInvalidator) {
	s.invalidator = inv
}

// Charge credits the tenant's ledger with purchased credits.
func (s *Service) Charge(ctx context.Context, tenantID string, amount float64, description string, ref *Ref) (*store.LedgerEntry, error) {
	if amount <= 0 {
		return nil, billing.Errf(billing.CodeValidation, "charge amount must be positive, got %v", amount)
	}
	return s.append(ctx, tenantID, store.EntryCharge, amount, description, "", ref)
}

// Deduct records credit consumption by a run. The amount is positive in the
// API and stored negative. A deduction that would take the balance below
// zero is rejected with InsufficientCreditsError.
func (s *Service) Deduct(ctx context.Context, tenantID string, amount float64, description, agentID string, ref *Ref) (*store.LedgerEntry, error) {
	if amount <= 0 {
		return nil, billing.Errf(billing.CodeValidation, "deduction amount must be positive, got %v", amount)
	}
	return s.append(ctx, tenantID, store.EntryUsage, -amount, description, agentID, ref)
}

// Refund restores spendable credits from a reversed purchase.
func (s *Service) Refund(ctx context.Context, tenantID string, amount float64, description string, ref *Ref) (*store.LedgerEntry, error) {
	if amount <= 0 {
		return nil, billing.Errf(billing.CodeValidation, "refund amount must be positive, got %v", amount)
	}
	return s.append(ctx, tenantID, store.EntryRefund, amount, description, "", ref)
}

// Bonus grants promotional credits.
func (s *Service) Bonus(ctx context.Context, tenantID string, amount float64, description string) (*store.LedgerEntry, error) {
	if amount <= 0 {
		return nil, billing.Errf(billing.CodeValidation, "bonus amount must be positive, got %v", amount)
	}
	return s.append(ctx, tenantID, store.EntryBonus, amount, description, "", nil)
}

// Adjust records an operator correction of either sign.
func (s *Service) Adjust(ctx context.Context, tenantID string, amount float64, description string) (*store.LedgerEntry, error) {
	if amount == 0 {
		return nil, billing.Errf(billing.CodeValidation, "adjustment amount must be nonzero")
	}
	return s.append(ctx, tenantID, store.EntryAdjustment, amount, description, "", nil)
}

// Balance returns the tenant's current credit balance from the latest
// snapshot. Tenants with no ledger history have a zero balance.
func (s *Service) Balance(ctx context.Context, tenantID string) (float64, error) {
	last, err := s.entries.LastEntry(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, billing.Wrap(billing.CodePersistence, err, "read ledger balance")
	}
	return last.BalanceAfter, nil
}

// History returns ledger entries for the tenant, newest first.
func (s *Service) History(ctx context.Context, filter store.LedgerFilter) ([]*store.LedgerEntry, error) {
	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, billing.Wrap(billing.CodePersistence, err, "list ledger entries")
	}
	return entries, nil
}

func (s *Service) append(ctx context.Context, tenantID string, entryType store.LedgerEntryType, amount float64, description, agentID string, ref *Ref) (*store.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := 0.0
	last, err := s.entries.LastEntry(ctx, tenantID)
	switch {
	case err == nil:
		balance = last.BalanceAfter
	case !errors.Is(err, store.ErrNotFound):
		return nil, billing.Wrap(billing.CodePersistence, err, "read ledger balance")
	}

	amount = round6(amount)
	if entryType == store.EntryUsage && round6(balance+amount) < 0 {
		return nil, &InsufficientCreditsError{Balance: balance, Required: -amount}
	}

	entry := &store.LedgerEntry{
		TenantID:     tenantID,
		Type:         entryType,
		Amount:       amount,
		BalanceAfter: round6(balance + amount),
		Description:  description,
	}
	if agentID != "" {
		entry.AgentID = &agentID
	}
	if ref != nil {
		entry.ReferenceID = &ref.ID
		entry.ReferenceType = &ref.Type
	}

	if err := s.entries.Append(ctx, entry); err != nil {
		return nil, billing.Wrap(billing.CodePersistence, err, "append ledger entry")
	}

	s.logger.Info("ledger entry appended",
		"tenant_id", tenantID,
		"type", string(entryType),
		"amount", entry.Amount,
		"balance_after", entry.BalanceAfter,
	)
	if s.collector != nil {
		s.collector.RecordLedgerEntry(string(entryType))
	}
	if s.auditLog != nil {
		actor := agentID
		if actor == "" {
			actor = "system"
		}
		s.auditLog.LogLedgerMutation(ctx, tenantID, actor, string(entryType), entry.Amount, entry.BalanceAfter)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, tenantID)
	}

	return entry, nil
}
