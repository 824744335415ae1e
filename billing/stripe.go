package billing

import (
	"context"
	"fmt"
	"sync"
)

// ProcessorClient abstracts the payment processor calls the synchronizer
// makes. State changes flow back asynchronously through webhooks, so the
// surface is deliberately small.
type ProcessorClient interface {
	// CreateCustomer registers a new processor customer for the given tenant.
	CreateCustomer(ctx context.Context, tenantID, email string) (customerID string, err error)
	// CreateCheckoutSession opens a hosted checkout session for a subscription purchase.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	// CancelAtPeriodEnd schedules the subscription to end at the current period boundary.
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
}

// CheckoutSessionParams describes a hosted checkout session to create.
type CheckoutSessionParams struct {
	TenantID   string
	PlanID     string
	CustomerID string // existing processor customer, empty to let checkout create one
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the created hosted checkout session the client is
// redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// ---------- Mock implementation ----------

// MockProcessor is a test double that records calls and returns configurable
// results.
type MockProcessor struct {
	mu sync.Mutex

	// Customers maps tenantID -> customerID.
	Customers map[string]string
	// Sessions maps sessionID -> the params it was created with.
	Sessions map[string]CheckoutSessionParams
	// Cancelled collects subscription IDs scheduled for period-end cancellation.
	Cancelled []string

	// Error fields allow tests to inject failures.
	CreateCustomerErr        error
	CreateCheckoutSessionErr error
	CancelAtPeriodEndErr     error

	nextCustomerSeq int
	nextSessionSeq  int
}

// NewMockProcessor creates a MockProcessor ready for use.
func NewMockProcessor() *MockProcessor {
	return &MockProcessor{
		Customers: make(map[string]string),
		Sessions:  make(map[string]CheckoutSessionParams),
	}
}

// CreateCustomer creates a mock customer.
func (m *MockProcessor) CreateCustomer(_ context.Context, tenantID, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateCustomerErr != nil {
		return "", m.CreateCustomerErr
	}

	m.nextCustomerSeq++
	id := fmt.Sprintf("cus_mock_%d", m.nextCustomerSeq)
	m.Customers[tenantID] = id
	return id, nil
}

// CreateCheckoutSession creates a mock checkout session.
func (m *MockProcessor) CreateCheckoutSession(_ context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateCheckoutSessionErr != nil {
		return nil, m.CreateCheckoutSessionErr
	}

	m.nextSessionSeq++
	id := fmt.Sprintf("cs_mock_%d", m.nextSessionSeq)
	m.Sessions[id] = params
	return &CheckoutSession{
		ID:  id,
		URL: fmt.Sprintf("https://checkout.mock/pay/%s", id),
	}, nil
}

// CancelAtPeriodEnd records a period-end cancellation request.
func (m *MockProcessor) CancelAtPeriodEnd(_ context.Context, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CancelAtPeriodEndErr != nil {
		return m.CancelAtPeriodEndErr
	}

	m.Cancelled = append(m.Cancelled, subscriptionID)
	return nil
}
