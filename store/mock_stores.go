package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// MockSubscriptionStore
// ---------------------------------------------------------------------------

// MockSubscriptionStore is an in-memory implementation of SubscriptionStore
// for testing.
type MockSubscriptionStore struct {
	mu   sync.Mutex
	byID map[string]*SubscriptionRecord // keyed by tenant ID
}

// NewMockSubscriptionStore creates a new MockSubscriptionStore.
func NewMockSubscriptionStore() *MockSubscriptionStore {
	return &MockSubscriptionStore{byID: make(map[string]*SubscriptionRecord)}
}

func (s *MockSubscriptionStore) Get(_ context.Context, tenantID string) (*SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MockSubscriptionStore) GetByProcessorCustomer(_ context.Context, customerID string) (*SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.byID {
		if r.ProcessorCustomerID != nil && *r.ProcessorCustomerID == customerID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MockSubscriptionStore) Upsert(_ context.Context, tenantID string, p SubscriptionPatch) (*SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()

	r, ok := s.byID[tenantID]
	if !ok {
		r = &SubscriptionRecord{
			ID:        uuid.New(),
			TenantID:  tenantID,
			PlanID:    "free",
			Status:    SubscriptionTrialing,
			CreatedAt: now,
		}
		s.byID[tenantID] = r
	}
	if p.PlanID != nil {
		r.PlanID = *p.PlanID
	}
	if p.ProcessorCustomerID != nil {
		v := *p.ProcessorCustomerID
		r.ProcessorCustomerID = &v
	}
	if p.ProcessorSubscriptionID != nil {
		v := *p.ProcessorSubscriptionID
		r.ProcessorSubscriptionID = &v
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.CurrentPeriodStart != nil {
		v := *p.CurrentPeriodStart
		r.CurrentPeriodStart = &v
	}
	if p.CurrentPeriodEnd != nil {
		v := *p.CurrentPeriodEnd
		r.CurrentPeriodEnd = &v
	}
	r.UpdatedAt = now

	cp := *r
	return &cp, nil
}

func (s *MockSubscriptionStore) List(_ context.Context, f SubscriptionFilter) ([]*SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []*SubscriptionRecord
	for _, r := range s.byID {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.PlanID != "" && r.PlanID != f.PlanID {
			continue
		}
		cp := *r
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	return applyPagination(results, f.Pagination), nil
}

var _ SubscriptionStore = (*MockSubscriptionStore)(nil)

// ---------------------------------------------------------------------------
// MockLedgerStore
// ---------------------------------------------------------------------------

// MockLedgerStore is an in-memory implementation of LedgerStore for testing.
type MockLedgerStore struct {
	mu      sync.Mutex
	entries []*LedgerEntry
}

// NewMockLedgerStore creates a new MockLedgerStore.
func NewMockLedgerStore() *MockLedgerStore {
	return &MockLedgerStore{}
}

func (s *MockLedgerStore) Append(_ context.Context, e *LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	for _, existing := range s.entries {
		if existing.ID == e.ID {
			return ErrDuplicate
		}
	}
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MockLedgerStore) LastEntry(_ context.Context, tenantID string) (*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].TenantID == tenantID {
			cp := *s.entries[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MockLedgerStore) AllForTenant(_ context.Context, tenantID string) ([]*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []*LedgerEntry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			cp := *e
			results = append(results, &cp)
		}
	}
	return results, nil
}

func (s *MockLedgerStore) List(_ context.Context, f LedgerFilter) ([]*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []*LedgerEntry
	for _, e := range s.entries {
		if f.TenantID != "" && e.TenantID != f.TenantID {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
			continue
		}
		if f.From != nil && e.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.CreatedAt.Before(*f.To) {
			continue
		}
		cp := *e
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	return applyPagination(results, f.Pagination), nil
}

func containsType(types []LedgerEntryType, t LedgerEntryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

var _ LedgerStore = (*MockLedgerStore)(nil)

// ---------------------------------------------------------------------------
// MockAlertConfigStore
// ---------------------------------------------------------------------------

// MockAlertConfigStore is an in-memory implementation of AlertConfigStore for
// testing.
type MockAlertConfigStore struct {
	mu      sync.Mutex
	configs map[string]*AlertConfig // keyed by tenant ID
}

// NewMockAlertConfigStore creates a new MockAlertConfigStore.
func NewMockAlertConfigStore() *MockAlertConfigStore {
	return &MockAlertConfigStore{configs: make(map[string]*AlertConfig)}
}

func (s *MockAlertConfigStore) Get(_ context.Context, tenantID string) (*AlertConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.configs[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MockAlertConfigStore) Upsert(_ context.Context, a *AlertConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()

	existing, ok := s.configs[a.TenantID]
	if ok {
		existing.ThresholdPercent = a.ThresholdPercent
		existing.Channel = a.Channel
		existing.Enabled = a.Enabled
		existing.UpdatedAt = now
		*a = *existing
		return nil
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	a.LastTriggeredAt = nil
	cp := *a
	s.configs[a.TenantID] = &cp
	return nil
}

func (s *MockAlertConfigStore) MarkTriggered(_ context.Context, tenantID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.configs[tenantID]
	if !ok {
		return ErrNotFound
	}
	if a.LastTriggeredAt == nil || a.LastTriggeredAt.Before(at) {
		cp := at
		a.LastTriggeredAt = &cp
	}
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MockAlertConfigStore) ListEnabled(_ context.Context) ([]*AlertConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var configs []*AlertConfig
	for _, a := range s.configs {
		if !a.Enabled {
			continue
		}
		cp := *a
		configs = append(configs, &cp)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].TenantID < configs[j].TenantID })
	return configs, nil
}

var _ AlertConfigStore = (*MockAlertConfigStore)(nil)

// ---------------------------------------------------------------------------
// MockAlertNotificationStore
// ---------------------------------------------------------------------------

// MockAlertNotificationStore is an in-memory implementation of
// AlertNotificationStore for testing.
type MockAlertNotificationStore struct {
	mu            sync.Mutex
	notifications []*AlertNotification
}

// NewMockAlertNotificationStore creates a new MockAlertNotificationStore.
func NewMockAlertNotificationStore() *MockAlertNotificationStore {
	return &MockAlertNotificationStore{}
}

func (s *MockAlertNotificationStore) Insert(_ context.Context, n *AlertNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.TriggeredAt.IsZero() {
		n.TriggeredAt = time.Now()
	}
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

func (s *MockAlertNotificationStore) List(_ context.Context, f NotificationFilter) ([]*AlertNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []*AlertNotification
	for _, n := range s.notifications {
		if f.TenantID != "" && n.TenantID != f.TenantID {
			continue
		}
		if f.Since != nil && n.TriggeredAt.Before(*f.Since) {
			continue
		}
		cp := *n
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].TriggeredAt.After(results[j].TriggeredAt) })
	return applyPagination(results, f.Pagination), nil
}

var _ AlertNotificationStore = (*MockAlertNotificationStore)(nil)

// ---------------------------------------------------------------------------
// MockAuditStore
// ---------------------------------------------------------------------------

// MockAuditStore is an in-memory implementation of AuditStore for testing.
type MockAuditStore struct {
	mu      sync.Mutex
	entries []*AuditEntry
}

// NewMockAuditStore creates a new MockAuditStore.
func NewMockAuditStore() *MockAuditStore {
	return &MockAuditStore{}
}

func (s *MockAuditStore) Record(_ context.Context, e *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Severity == "" {
		e.Severity = "info"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MockAuditStore) Query(_ context.Context, f AuditFilter) ([]*AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []*AuditEntry
	for _, e := range s.entries {
		if f.TenantID != "" && e.TenantID != f.TenantID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.Since != nil && e.CreatedAt.Before(*f.Since) {
			continue
		}
		cp := *e
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	return applyPagination(results, f.Pagination), nil
}

var _ AuditStore = (*MockAuditStore)(nil)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func applyPagination[T any](items []*T, p Pagination) []*T {
	if len(items) == 0 {
		return items
	}
	start := p.Offset
	if start > len(items) {
		return nil
	}
	items = items[start:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}
