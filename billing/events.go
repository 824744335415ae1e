package billing

import "time"

// EventType identifies a processor webhook event this service reacts to.
type EventType string

// The closed routing set. Everything else is acknowledged and ignored so the
// processor does not retry event types we never act on.
const (
	EventCheckoutCompleted    EventType = "checkout.session.completed"
	EventSubscriptionUpdated  EventType = "customer.subscription.updated"
	EventInvoicePaymentFailed EventType = "invoice.payment_failed"
)

// KnownEventType reports whether the router acts on the given event type.
func KnownEventType(t EventType) bool {
	switch t {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventInvoicePaymentFailed:
		return true
	}
	return false
}

// Event is a decoded processor event. Exactly one payload pointer is set,
// matching Type.
type Event struct {
	ID   string
	Type EventType

	CheckoutCompleted    *CheckoutCompletedEvent
	SubscriptionUpdated  *SubscriptionUpdatedEvent
	InvoicePaymentFailed *InvoicePaymentFailedEvent
}

// CheckoutCompletedEvent carries the fields consumed from a completed hosted
// checkout. TenantID and PlanID come from the session metadata written at
// session creation.
type CheckoutCompletedEvent struct {
	TenantID       string
	PlanID         string
	CustomerID     string
	SubscriptionID string
}

// SubscriptionUpdatedEvent carries the fields consumed from a subscription
// lifecycle update. TenantID comes from the subscription metadata and may be
// empty; the synchronizer then resolves the tenant by customer ID.
type SubscriptionUpdatedEvent struct {
	TenantID           string
	CustomerID         string
	SubscriptionID     string
	Status             string // raw processor status
	CancelAtPeriodEnd  bool
	PriceID            string // current price, used to derive the plan
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

// InvoicePaymentFailedEvent carries the fields consumed from a failed
// payment. Only the customer is needed; the tenant is resolved by customer
// lookup.
type InvoicePaymentFailedEvent struct {
	CustomerID string
	InvoiceID  string
}
