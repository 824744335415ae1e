package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/console/audit"
	"github.com/GoCodeAlone/console/metrics"
	"github.com/GoCodeAlone/console/store"
)

// Mode selects how checkout and cancellation talk to the payment processor.
type Mode string

const (
	// ModeLive drives a real processor; paid activation arrives via webhooks.
	ModeLive Mode = "live"
	// ModeSimulated performs no processor calls; checkout activates
	// synchronously. Used for development and tests.
	ModeSimulated Mode = "simulated"
)

// simulatedPeriod is the subscription period granted by simulated and free
// checkouts, which have no processor-defined billing cycle.
const simulatedPeriod = 30 * 24 * time.Hour

// CheckoutURLs are the redirect targets for hosted checkout sessions.
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

// CheckoutResult is the outcome of ApplyCheckout. Activated results carry the
// updated subscription; live paid checkouts instead carry the hosted session
// URL, and the local row stays provisional until webhooks confirm payment.
type CheckoutResult struct {
	Activated    bool
	CheckoutURL  string
	SessionID    string
	Subscription *store.SubscriptionRecord
	Mode         Mode
}

// Synchronizer reconciles local subscription state with the payment
// processor. Every local write is an idempotent upsert keyed by tenant, so
// webhook redelivery and concurrent checkouts converge on the same row.
type Synchronizer struct {
	subs      store.SubscriptionStore
	processor ProcessorClient
	prices    PlanPrices
	mode      Mode
	urls      CheckoutURLs
	logger    *slog.Logger
	collector *metrics.Collector
	auditLog  *audit.Logger
}

// NewSynchronizer creates a Synchronizer. collector and auditLog may be nil.
func NewSynchronizer(
	subs store.SubscriptionStore,
	processor ProcessorClient,
	prices PlanPrices,
	mode Mode,
	urls CheckoutURLs,
	logger *slog.Logger,
	collector *metrics.Collector,
	auditLog *audit.Logger,
) *Synchronizer {
	return &Synchronizer{
		subs:      subs,
		processor: processor,
		prices:    prices,
		mode:      mode,
		urls:      urls,
		logger:    logger,
		collector: collector,
		auditLog:  auditLog,
	}
}

// Mode returns the processor mode the synchronizer was built with.
func (s *Synchronizer) Mode() Mode { return s.mode }

// Get returns the tenant's subscription record.
func (s *Synchronizer) Get(ctx context.Context, tenantID string) (*store.SubscriptionRecord, error) {
	sub, err := s.subs.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing: get subscription: %w", err)
	}
	return sub, nil
}

// ApplyCheckout starts a plan purchase for the tenant. Free plans activate
// immediately in any mode, as does every plan in simulated mode. Live paid
// plans open a hosted checkout session: the local row is primed with the
// processor customer, and activation arrives later via
// checkout.session.completed.
func (s *Synchronizer) ApplyCheckout(ctx context.Context, tenantID, planID string) (*CheckoutResult, error) {
	plan := PlanByID(planID)
	if plan == nil {
		return nil, Errf(CodeValidation, "unknown plan %q", planID)
	}

	if s.mode == ModeSimulated || plan.PriceMonthly == 0 {
		return s.activateDirect(ctx, tenantID, plan)
	}

	priceID, ok := s.prices[plan.ID]
	if !ok || priceID == "" {
		return nil, Errf(CodeConfiguration, "no processor price configured for plan %q", plan.ID)
	}

	customerID, err := s.ensureCustomer(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, CheckoutSessionParams{
		TenantID:   tenantID,
		PlanID:     plan.ID,
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.urls.SuccessURL,
		CancelURL:  s.urls.CancelURL,
	})
	if err != nil {
		return nil, Wrap(CodeInternal, err, "create checkout session")
	}

	// Prime the local row with the customer binding. Status and period stay
	// provisional until the webhook confirms payment.
	sub, err := s.subs.Upsert(ctx, tenantID, store.SubscriptionPatch{
		ProcessorCustomerID: &customerID,
	})
	if err != nil {
		return nil, Wrap(CodePersistence, err, "prime subscription for checkout")
	}

	s.recordSync(ctx, "checkout", string(sub.Status), tenantID, "hosted checkout session opened for plan "+plan.ID)

	return &CheckoutResult{
		CheckoutURL:  sess.URL,
		SessionID:    sess.ID,
		Subscription: sub,
		Mode:         s.mode,
	}, nil
}

// Cancel schedules the tenant's subscription to end at the period boundary.
// The local row flips to cancelled immediately; in live mode the processor is
// told to stop renewing as well.
func (s *Synchronizer) Cancel(ctx context.Context, tenantID string) (*store.SubscriptionRecord, error) {
	sub, err := s.subs.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing: cancel subscription: %w", err)
	}

	if s.mode == ModeLive && sub.ProcessorSubscriptionID != nil && *sub.ProcessorSubscriptionID != "" {
		if err := s.processor.CancelAtPeriodEnd(ctx, *sub.ProcessorSubscriptionID); err != nil {
			return nil, Wrap(CodeInternal, err, "processor cancellation")
		}
	}

	status := store.SubscriptionCancelled
	updated, err := s.subs.Upsert(ctx, tenantID, store.SubscriptionPatch{Status: &status})
	if err != nil {
		return nil, Wrap(CodePersistence, err, "persist cancellation")
	}

	s.recordSync(ctx, "cancel", string(status), tenantID, "cancellation requested")
	return updated, nil
}

// ApplyEvent folds a decoded processor event into local state. Events are
// safe to redeliver: the patch derived from an event is deterministic and the
// upsert is idempotent.
func (s *Synchronizer) ApplyEvent(ctx context.Context, evt Event) (*store.SubscriptionRecord, error) {
	switch evt.Type {
	case EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, evt.CheckoutCompleted)
	case EventSubscriptionUpdated:
		return s.applySubscriptionUpdated(ctx, evt.SubscriptionUpdated)
	case EventInvoicePaymentFailed:
		return s.applyInvoicePaymentFailed(ctx, evt.InvoicePaymentFailed)
	default:
		return nil, Errf(CodeValidation, "unroutable event type %q", evt.Type)
	}
}

func (s *Synchronizer) applyCheckoutCompleted(ctx context.Context, evt *CheckoutCompletedEvent) (*store.SubscriptionRecord, error) {
	if evt == nil {
		return nil, Errf(CodeValidation, "checkout event carries no payload")
	}
	if evt.TenantID == "" {
		return nil, Errf(CodeValidation, "checkout session carries no tenant metadata")
	}

	status := store.SubscriptionActive
	patch := store.SubscriptionPatch{Status: &status}
	if evt.PlanID != "" {
		patch.PlanID = &evt.PlanID
	}
	if evt.CustomerID != "" {
		patch.ProcessorCustomerID = &evt.CustomerID
	}
	if evt.SubscriptionID != "" {
		patch.ProcessorSubscriptionID = &evt.SubscriptionID
	}

	sub, err := s.subs.Upsert(ctx, evt.TenantID, patch)
	if err != nil {
		return nil, Wrap(CodePersistence, err, "apply checkout completion")
	}

	s.recordSync(ctx, "webhook", string(status), evt.TenantID, "checkout completed")
	return sub, nil
}

func (s *Synchronizer) applySubscriptionUpdated(ctx context.Context, evt *SubscriptionUpdatedEvent) (*store.SubscriptionRecord, error) {
	if evt == nil {
		return nil, Errf(CodeValidation, "subscription event carries no payload")
	}

	tenantID, err := s.resolveTenant(ctx, evt.TenantID, evt.CustomerID)
	if err != nil {
		return nil, err
	}

	status := MapProcessorStatus(evt.Status, evt.CancelAtPeriodEnd)
	patch := store.SubscriptionPatch{
		Status:             &status,
		CurrentPeriodStart: evt.CurrentPeriodStart,
		CurrentPeriodEnd:   evt.CurrentPeriodEnd,
	}
	if evt.SubscriptionID != "" {
		patch.ProcessorSubscriptionID = &evt.SubscriptionID
	}
	if evt.CustomerID != "" {
		patch.ProcessorCustomerID = &evt.CustomerID
	}
	if evt.PriceID != "" {
		if planID := s.prices.PlanForPrice(evt.PriceID); planID != "" {
			patch.PlanID = &planID
		}
	}

	sub, err := s.subs.Upsert(ctx, tenantID, patch)
	if err != nil {
		return nil, Wrap(CodePersistence, err, "apply subscription update")
	}

	s.recordSync(ctx, "webhook", string(status), tenantID, "subscription updated, raw status "+evt.Status)
	return sub, nil
}

func (s *Synchronizer) applyInvoicePaymentFailed(ctx context.Context, evt *InvoicePaymentFailedEvent) (*store.SubscriptionRecord, error) {
	if evt == nil {
		return nil, Errf(CodeValidation, "invoice event carries no payload")
	}

	tenantID, err := s.resolveTenant(ctx, "", evt.CustomerID)
	if err != nil {
		return nil, err
	}

	status := store.SubscriptionPastDue
	sub, err := s.subs.Upsert(ctx, tenantID, store.SubscriptionPatch{Status: &status})
	if err != nil {
		return nil, Wrap(CodePersistence, err, "apply payment failure")
	}

	s.recordSync(ctx, "webhook", string(status), tenantID, "invoice payment failed")
	return sub, nil
}

func (s *Synchronizer) activateDirect(ctx context.Context, tenantID string, plan *Plan) (*CheckoutResult, error) {
	now := time.Now().UTC()
	end := now.Add(simulatedPeriod)
	status := store.SubscriptionActive

	sub, err := s.subs.Upsert(ctx, tenantID, store.SubscriptionPatch{
		PlanID:             &plan.ID,
		Status:             &status,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
	})
	if err != nil {
		return nil, Wrap(CodePersistence, err, "activate subscription")
	}

	s.recordSync(ctx, "checkout", string(status), tenantID, "direct activation on plan "+plan.ID)

	return &CheckoutResult{
		Activated:    true,
		Subscription: sub,
		Mode:         s.mode,
	}, nil
}

// ensureCustomer returns the tenant's processor customer, creating one on
// first need.
func (s *Synchronizer) ensureCustomer(ctx context.Context, tenantID string) (string, error) {
	sub, err := s.subs.Get(ctx, tenantID)
	switch {
	case err == nil:
		if sub.ProcessorCustomerID != nil && *sub.ProcessorCustomerID != "" {
			return *sub.ProcessorCustomerID, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return "", Wrap(CodePersistence, err, "load subscription")
	}

	id, err := s.processor.CreateCustomer(ctx, tenantID, "")
	if err != nil {
		return "", Wrap(CodeInternal, err, "create processor customer")
	}
	return id, nil
}

// resolveTenant prefers the tenant carried in event metadata and falls back
// to the customer binding on the local subscription row. Events that resolve
// to no tenant fail validation so the processor retries them instead of a
// money-relevant signal being dropped.
func (s *Synchronizer) resolveTenant(ctx context.Context, tenantID, customerID string) (string, error) {
	if tenantID != "" {
		return tenantID, nil
	}
	if customerID == "" {
		return "", Errf(CodeValidation, "event carries no tenant or customer reference")
	}

	sub, err := s.subs.GetByProcessorCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", Errf(CodeValidation, "no tenant bound to processor customer %s", customerID)
		}
		return "", Wrap(CodePersistence, err, "resolve tenant by customer")
	}
	return sub.TenantID, nil
}

func (s *Synchronizer) recordSync(ctx context.Context, source, status, tenantID, detail string) {
	s.logger.Info("subscription sync",
		"source", source,
		"tenant_id", tenantID,
		"status", status,
	)
	if s.collector != nil {
		s.collector.RecordSubscriptionSync(source, status)
	}
	if s.auditLog != nil {
		s.auditLog.LogSubscriptionSync(ctx, tenantID, source, status, detail)
	}
}
