package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/GoCodeAlone/console/audit"
	"github.com/GoCodeAlone/console/metrics"
)

// Ack outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)

// Ack is the processing receipt for one webhook delivery. Outcome "applied"
// means local state changed; "ignored" means the event type is outside the
// routing set and was deliberately skipped.
type Ack struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Outcome   string `json:"outcome"`
	Verified  bool   `json:"verified"`
}

// WebhookRouter verifies and routes processor webhook deliveries. With a
// signing secret configured every payload must carry a valid signature.
// Without one payloads are accepted unverified, which only suits local
// simulation and is logged loudly on every delivery.
type WebhookRouter struct {
	secret    string
	sync      *Synchronizer
	logger    *slog.Logger
	collector *metrics.Collector
	auditLog  *audit.Logger
}

// NewWebhookRouter creates a WebhookRouter. collector and auditLog may be nil.
func NewWebhookRouter(secret string, sync *Synchronizer, logger *slog.Logger, collector *metrics.Collector, auditLog *audit.Logger) *WebhookRouter {
	return &WebhookRouter{
		secret:    secret,
		sync:      sync,
		logger:    logger,
		collector: collector,
		auditLog:  auditLog,
	}
}

// Handle verifies, decodes, and applies one webhook delivery. Unknown event
// types return an "ignored" ack and no error so the transport answers 2xx
// and the processor stops redelivering them. Failures on known types return
// an error so redelivery retries the state change.
func (r *WebhookRouter) Handle(ctx context.Context, payload []byte, sigHeader string) (*Ack, error) {
	event, verified, err := r.decode(payload, sigHeader)
	if err != nil {
		return nil, err
	}

	etype := EventType(event.Type)
	ack := &Ack{EventID: event.ID, EventType: string(etype), Verified: verified}

	if !KnownEventType(etype) {
		ack.Outcome = OutcomeIgnored
		r.logger.Debug("ignoring webhook event",
			"event_id", event.ID,
			"event_type", string(event.Type),
		)
		// Outside the routing set: counted, but not worth an audit row.
		if r.collector != nil {
			r.collector.RecordWebhookEvent(ack.EventType, OutcomeIgnored)
		}
		return ack, nil
	}

	if event.Data == nil {
		r.observe(ctx, ack, OutcomeFailed, false)
		return nil, Errf(CodeValidation, "webhook event %s carries no data object", event.ID)
	}

	evt, err := r.parse(etype, event)
	if err != nil {
		r.observe(ctx, ack, OutcomeFailed, false)
		return nil, err
	}

	if _, err := r.sync.ApplyEvent(ctx, *evt); err != nil {
		r.observe(ctx, ack, OutcomeFailed, false)
		return nil, err
	}

	ack.Outcome = OutcomeApplied
	r.observe(ctx, ack, OutcomeApplied, true)
	return ack, nil
}

// decode verifies the payload signature when a secret is configured and
// unmarshals the event envelope.
func (r *WebhookRouter) decode(payload []byte, sigHeader string) (stripe.Event, bool, error) {
	if r.secret != "" {
		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, r.secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return stripe.Event{}, false, Wrap(CodeInvalidSignature, err, "webhook signature verification failed")
		}
		return event, true, nil
	}

	r.logger.Warn("accepting unverified webhook payload, no signing secret configured")
	if r.collector != nil {
		r.collector.RecordWebhookUnverified()
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, false, Wrap(CodeValidation, err, "parse webhook payload")
	}
	return event, false, nil
}

// parse narrows the raw event object into the typed payload for its type.
func (r *WebhookRouter) parse(etype EventType, event stripe.Event) (*Event, error) {
	evt := &Event{ID: event.ID, Type: etype}

	switch etype {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, Wrap(CodeValidation, err, "parse checkout session payload")
		}
		cc := &CheckoutCompletedEvent{
			TenantID: sess.Metadata["tenant_id"],
			PlanID:   sess.Metadata["plan_id"],
		}
		if sess.Customer != nil {
			cc.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			cc.SubscriptionID = sess.Subscription.ID
		}
		evt.CheckoutCompleted = cc

	case EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, Wrap(CodeValidation, err, "parse subscription payload")
		}
		su := &SubscriptionUpdatedEvent{
			TenantID:          sub.Metadata["tenant_id"],
			SubscriptionID:    sub.ID,
			Status:            string(sub.Status),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		}
		if sub.Customer != nil {
			su.CustomerID = sub.Customer.ID
		}
		// Billing periods live on the subscription items.
		if sub.Items != nil && len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			if item.Price != nil {
				su.PriceID = item.Price.ID
			}
			if item.CurrentPeriodStart > 0 {
				t := time.Unix(item.CurrentPeriodStart, 0).UTC()
				su.CurrentPeriodStart = &t
			}
			if item.CurrentPeriodEnd > 0 {
				t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
				su.CurrentPeriodEnd = &t
			}
		}
		evt.SubscriptionUpdated = su

	case EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, Wrap(CodeValidation, err, "parse invoice payload")
		}
		ipf := &InvoicePaymentFailedEvent{InvoiceID: inv.ID}
		if inv.Customer != nil {
			ipf.CustomerID = inv.Customer.ID
		}
		evt.InvoicePaymentFailed = ipf
	}

	return evt, nil
}

func (r *WebhookRouter) observe(ctx context.Context, ack *Ack, outcome string, success bool) {
	if r.collector != nil {
		r.collector.RecordWebhookEvent(ack.EventType, outcome)
	}
	if r.auditLog != nil {
		r.auditLog.LogWebhook(ctx, ack.EventType, ack.EventID, ack.Verified, success)
	}
}
