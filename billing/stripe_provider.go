package billing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
)

// PlanPrices maps plan IDs to Stripe price IDs (monthly). These must match
// price objects configured in the Stripe dashboard.
type PlanPrices map[string]string

// PlanForPrice returns the plan ID mapped to the given Stripe price ID, or
// "" when the price is not part of the catalog mapping.
func (p PlanPrices) PlanForPrice(priceID string) string {
	for planID, price := range p {
		if price == priceID {
			return planID
		}
	}
	return ""
}

// StripeClient implements ProcessorClient using the Stripe API.
type StripeClient struct {
	apiKey string
}

var _ ProcessorClient = (*StripeClient)(nil)

// NewStripeClient creates a StripeClient with the given API key. All Stripe
// calls share an HTTP client bounded by timeout so a slow processor cannot
// hold a request goroutine indefinitely.
func NewStripeClient(apiKey string, timeout time.Duration) *StripeClient {
	stripe.Key = apiKey
	if timeout > 0 {
		stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient: &http.Client{Timeout: timeout},
		}))
	}
	return &StripeClient{apiKey: apiKey}
}

// CreateCustomer creates a new Stripe customer tagged with the tenant ID so
// webhook payloads can always be traced back to a tenant.
func (c *StripeClient) CreateCustomer(_ context.Context, tenantID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"tenant_id": tenantID,
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	cus, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: create stripe customer: %w", err)
	}
	return cus.ID, nil
}

// CreateCheckoutSession opens a Stripe hosted checkout session in
// subscription mode. Tenant and plan ride along as metadata on both the
// session and the subscription it creates.
func (c *StripeClient) CreateCheckoutSession(_ context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	meta := map[string]string{
		"tenant_id": p.TenantID,
		"plan_id":   p.PlanID,
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("billing: create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CancelAtPeriodEnd flags the Stripe subscription to end at the current
// period boundary. The resulting customer.subscription.updated webhook
// carries cancel_at_period_end=true back to the synchronizer.
func (c *StripeClient) CancelAtPeriodEnd(_ context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("billing: cancel stripe subscription: %w", err)
	}
	return nil
}
