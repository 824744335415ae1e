package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/store"
	"github.com/GoCodeAlone/console/tenant"
)

// BillingHandler serves the subscription lifecycle endpoints: plan listing,
// checkout, subscription read/cancel, and the payment processor webhook.
type BillingHandler struct {
	sync     *billing.Synchronizer
	webhooks *billing.WebhookRouter
	logger   *slog.Logger
}

func NewBillingHandler(sync *billing.Synchronizer, webhooks *billing.WebhookRouter, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{sync: sync, webhooks: webhooks, logger: logger}
}

// checkoutResponse is the payload for POST /api/v1/billing/checkout. The
// checkout URL is null when the plan activated without a hosted session.
type checkoutResponse struct {
	Message      string                    `json:"message"`
	CheckoutURL  *string                   `json:"checkout_url"`
	Subscription *store.SubscriptionRecord `json:"subscription,omitempty"`
	Mode         string                    `json:"mode"`
}

// Checkout handles POST /api/v1/billing/checkout.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	tenantID := tenant.TenantFromContext(r.Context())

	var req struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if req.PlanID == "" {
		WriteError(w, http.StatusBadRequest, "validation", "plan_id is required")
		return
	}

	result, err := h.sync.ApplyCheckout(r.Context(), tenantID, req.PlanID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	resp := checkoutResponse{Mode: string(result.Mode)}
	if result.Activated {
		resp.Message = "subscription activated"
		resp.Subscription = result.Subscription
	} else {
		resp.Message = "checkout session created"
		resp.CheckoutURL = &result.CheckoutURL
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetSubscription handles GET /api/v1/billing/subscription.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.sync.Get(r.Context(), tenant.TenantFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "no subscription for tenant")
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, sub)
}

// CancelSubscription handles DELETE /api/v1/billing/subscription.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.sync.Cancel(r.Context(), tenant.TenantFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "no subscription for tenant")
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, sub)
}

// Plans handles GET /api/v1/billing/plans.
func (h *BillingHandler) Plans(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, billing.AllPlans)
}

// Webhook handles POST /api/v1/billing/webhook. The route sits outside the
// tenant middleware: callers authenticate through the signature header, and
// the tenant is read out of the event payload.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation", "failed to read request body")
		return
	}

	ack, err := h.webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, ack)
}
