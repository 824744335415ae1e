package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/GoCodeAlone/console/store"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload produces a Stripe-Signature header for payload: an HMAC-SHA256
// of "<timestamp>.<payload>" keyed with the signing secret.
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestRouter(secret string, mode Mode, prices PlanPrices) (*WebhookRouter, *store.MockSubscriptionStore) {
	sync, subs := newTestSync(mode, NewMockProcessor(), prices)
	return NewWebhookRouter(secret, sync, testLogger(), nil, nil), subs
}

func subscriptionUpdatedPayload(tenantID, customerID, status string, cancelAtPeriodEnd bool) []byte {
	return fmt.Appendf(nil, `{
		"id": "evt_test_1",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_test_1",
				"object": "subscription",
				"customer": %q,
				"status": %q,
				"cancel_at_period_end": %v,
				"metadata": {"tenant_id": %q},
				"items": {
					"object": "list",
					"data": [{
						"id": "si_test_1",
						"object": "subscription_item",
						"current_period_start": 1755302400,
						"current_period_end": 1757980800,
						"price": {"id": "price_pro", "object": "price"}
					}]
				}
			}
		}
	}`, customerID, status, cancelAtPeriodEnd, tenantID)
}

func TestWebhookRouter_ValidSignatureApplies(t *testing.T) {
	ctx := context.Background()
	router, subs := newTestRouter(testWebhookSecret, ModeLive, PlanPrices{"professional": "price_pro"})

	payload := subscriptionUpdatedPayload("tenant-a", "cus_1", "past_due", false)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	ack, err := router.Handle(ctx, payload, sig)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if ack.Outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want applied", ack.Outcome)
	}
	if !ack.Verified {
		t.Error("ack should be marked verified")
	}
	if ack.EventID != "evt_test_1" {
		t.Errorf("event ID = %q", ack.EventID)
	}

	sub, err := subs.Get(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Status != store.SubscriptionPastDue {
		t.Errorf("status = %q, want past_due", sub.Status)
	}
	if sub.PlanID != "professional" {
		t.Errorf("plan = %q, want professional (derived from price)", sub.PlanID)
	}
	if sub.CurrentPeriodStart == nil || sub.CurrentPeriodStart.Unix() != 1755302400 {
		t.Error("period start not applied from subscription items")
	}
	if sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.Unix() != 1757980800 {
		t.Error("period end not applied from subscription items")
	}
	if sub.ProcessorSubscriptionID == nil || *sub.ProcessorSubscriptionID != "sub_test_1" {
		t.Error("subscription ID not bound")
	}
}

func TestWebhookRouter_InvalidSignature(t *testing.T) {
	ctx := context.Background()
	router, subs := newTestRouter(testWebhookSecret, ModeLive, nil)

	payload := subscriptionUpdatedPayload("tenant-a", "cus_1", "active", false)
	sig := signPayload(payload, "whsec_wrong_secret", time.Now())

	ack, err := router.Handle(ctx, payload, sig)
	if err == nil {
		t.Fatal("expected signature verification to fail")
	}
	if ack != nil {
		t.Error("no ack should be produced for a rejected payload")
	}
	if CodeOf(err) != CodeInvalidSignature {
		t.Errorf("code = %q, want invalid_signature", CodeOf(err))
	}

	// Nothing may be applied.
	if _, err := subs.Get(ctx, "tenant-a"); err == nil {
		t.Error("rejected payload must not create state")
	}
}

func TestWebhookRouter_StaleTimestampRejected(t *testing.T) {
	ctx := context.Background()
	router, _ := newTestRouter(testWebhookSecret, ModeLive, nil)

	payload := subscriptionUpdatedPayload("tenant-a", "cus_1", "active", false)
	sig := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))

	if _, err := router.Handle(ctx, payload, sig); err == nil {
		t.Fatal("expected stale signature timestamp to be rejected")
	}
}

func TestWebhookRouter_UnknownEventIgnored(t *testing.T) {
	ctx := context.Background()
	router, subs := newTestRouter(testWebhookSecret, ModeLive, nil)

	payload := []byte(`{"id": "evt_test_2", "type": "charge.refunded", "data": {"object": {"id": "ch_1"}}}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	ack, err := router.Handle(ctx, payload, sig)
	if err != nil {
		t.Fatalf("unknown event types must be acknowledged, got %v", err)
	}
	if ack.Outcome != OutcomeIgnored {
		t.Errorf("outcome = %q, want ignored", ack.Outcome)
	}

	list, err := subs.List(ctx, store.SubscriptionFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Error("ignored event must not touch state")
	}
}

func TestWebhookRouter_NoSecretAcceptsUnverified(t *testing.T) {
	ctx := context.Background()
	router, subs := newTestRouter("", ModeSimulated, nil)

	payload := subscriptionUpdatedPayload("tenant-a", "cus_1", "active", false)

	ack, err := router.Handle(ctx, payload, "")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if ack.Verified {
		t.Error("ack must be marked unverified without a signing secret")
	}
	if ack.Outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want applied", ack.Outcome)
	}

	sub, err := subs.Get(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Status != store.SubscriptionActive {
		t.Errorf("status = %q, want active", sub.Status)
	}
}

func TestWebhookRouter_MalformedPayload(t *testing.T) {
	ctx := context.Background()
	router, _ := newTestRouter("", ModeSimulated, nil)

	if _, err := router.Handle(ctx, []byte("not json"), ""); err == nil {
		t.Fatal("expected malformed payload to fail")
	}
}

func TestWebhookRouter_CheckoutSessionCompleted(t *testing.T) {
	ctx := context.Background()
	router, subs := newTestRouter(testWebhookSecret, ModeLive, nil)

	payload := []byte(`{
		"id": "evt_test_3",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"customer": "cus_42",
				"subscription": "sub_42",
				"metadata": {"tenant_id": "tenant-b", "plan_id": "starter"}
			}
		}
	}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	ack, err := router.Handle(ctx, payload, sig)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if ack.Outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want applied", ack.Outcome)
	}

	sub, err := subs.Get(ctx, "tenant-b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Status != store.SubscriptionActive {
		t.Errorf("status = %q, want active", sub.Status)
	}
	if sub.PlanID != "starter" {
		t.Errorf("plan = %q, want starter", sub.PlanID)
	}
	if sub.ProcessorCustomerID == nil || *sub.ProcessorCustomerID != "cus_42" {
		t.Error("customer not bound from session")
	}
	if sub.ProcessorSubscriptionID == nil || *sub.ProcessorSubscriptionID != "sub_42" {
		t.Error("subscription not bound from session")
	}
}

func TestWebhookRouter_CheckoutWithoutTenantFails(t *testing.T) {
	ctx := context.Background()
	router, _ := newTestRouter(testWebhookSecret, ModeLive, nil)

	payload := []byte(`{
		"id": "evt_test_4",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_2",
				"object": "checkout.session",
				"customer": "cus_43",
				"metadata": {}
			}
		}
	}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	_, err := router.Handle(ctx, payload, sig)
	if err == nil {
		t.Fatal("expected failure when session carries no tenant")
	}
	if CodeOf(err) != CodeValidation {
		t.Errorf("code = %q, want validation", CodeOf(err))
	}
}

func TestWebhookRouter_InvoicePaymentFailed(t *testing.T) {
	ctx := context.Background()
	router, subs := newTestRouter(testWebhookSecret, ModeLive, nil)

	customer := "cus_77"
	active := store.SubscriptionActive
	if _, err := subs.Upsert(ctx, "tenant-c", store.SubscriptionPatch{
		Status:              &active,
		ProcessorCustomerID: &customer,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	payload := []byte(`{
		"id": "evt_test_5",
		"type": "invoice.payment_failed",
		"data": {
			"object": {
				"id": "in_1",
				"object": "invoice",
				"customer": "cus_77"
			}
		}
	}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	ack, err := router.Handle(ctx, payload, sig)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if ack.Outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want applied", ack.Outcome)
	}

	sub, err := subs.Get(ctx, "tenant-c")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Status != store.SubscriptionPastDue {
		t.Errorf("status = %q, want past_due", sub.Status)
	}
}

func TestWebhookRouter_EventWithoutData(t *testing.T) {
	ctx := context.Background()
	router, _ := newTestRouter("", ModeSimulated, nil)

	payload := []byte(`{"id": "evt_test_6", "type": "customer.subscription.updated"}`)
	if _, err := router.Handle(ctx, payload, ""); err == nil {
		t.Fatal("expected failure for event without data object")
	}
}
