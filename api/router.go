package api

import (
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/console/alert"
	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/ledger"
	"github.com/GoCodeAlone/console/metrics"
	"github.com/GoCodeAlone/console/notify"
	"github.com/GoCodeAlone/console/tenant"
)

// Config holds configuration for the API layer.
type Config struct {
	// JWTSecret enables bearer-token tenant resolution when non-empty.
	// Without it the resolver falls back to the X-Tenant-ID header, which is
	// only acceptable behind a trusted proxy.
	JWTSecret string //nolint:gosec // G117: config field

	// AllowedTenants restricts the API to the listed tenants when non-empty.
	AllowedTenants []string

	// RateLimit is the default per-tenant request budget per minute on the
	// billing routes. Zero keeps the registry default.
	RateLimit int
}

// Services groups the domain services the API fronts. Sync, Webhooks,
// Alerts, Credits, and Usage are required; the rest may be nil and their
// routes or checks are simply not mounted.
type Services struct {
	Sync     *billing.Synchronizer
	Webhooks *billing.WebhookRouter
	Alerts   *alert.Service
	Credits  *ledger.Service
	Usage    OverviewProvider

	// DeadLetters and Deliverer together enable the notification admin
	// routes.
	DeadLetters *notify.DeadLetterStore
	Deliverer   *notify.Deliverer

	// Health is pinged by the liveness endpoint. Nil skips the check.
	Health Pinger

	// Quotas overrides the per-tenant rate limit registry. Nil builds one
	// from Config.RateLimit.
	Quotas *tenant.QuotaRegistry

	Collector *metrics.Collector
	Logger    *slog.Logger
}

// NewRouter creates an http.Handler with all API routes registered. Every
// billing route except the webhook sits behind tenant resolution and quota
// enforcement; the webhook authenticates through its signature instead.
func NewRouter(svc Services, cfg Config) http.Handler {
	mux := http.NewServeMux()

	resolver := tenant.NewResolver([]byte(cfg.JWTSecret))
	if len(cfg.AllowedTenants) > 0 {
		resolver.SetAllowedTenants(cfg.AllowedTenants)
	}

	registry := svc.Quotas
	if registry == nil {
		registry = tenant.NewQuotaRegistry()
		if cfg.RateLimit > 0 {
			registry.SetDefaultQuota(tenant.Quota{RequestsPerMinute: cfg.RateLimit})
		}
	}
	quotas := tenant.NewQuotaEnforcer(registry)

	protect := func(h http.HandlerFunc) http.Handler {
		return resolver.Process(quotas.Process(h))
	}

	// --- Billing ---
	billingH := NewBillingHandler(svc.Sync, svc.Webhooks, svc.Logger)
	mux.Handle("GET /api/v1/billing/plans", protect(billingH.Plans))
	mux.Handle("POST /api/v1/billing/checkout", protect(billingH.Checkout))
	mux.Handle("GET /api/v1/billing/subscription", protect(billingH.GetSubscription))
	mux.Handle("DELETE /api/v1/billing/subscription", protect(billingH.CancelSubscription))
	mux.HandleFunc("POST /api/v1/billing/webhook", billingH.Webhook)

	// --- Usage ---
	usageH := NewUsageHandler(svc.Usage, svc.Credits, svc.Logger)
	mux.Handle("GET /api/v1/billing/usage", protect(usageH.Overview))
	mux.Handle("GET /api/v1/billing/ledger", protect(usageH.Ledger))

	// --- Alerts ---
	alertsH := NewAlertsHandler(svc.Alerts, svc.Logger)
	mux.Handle("GET /api/v1/billing/alerts", protect(alertsH.Get))
	mux.Handle("PATCH /api/v1/billing/alerts", protect(alertsH.Update))

	// --- Notification admin ---
	if svc.DeadLetters != nil && svc.Deliverer != nil {
		notify.NewHandler(svc.DeadLetters, svc.Deliverer).RegisterRoutes(mux)
	}

	// --- Operational ---
	healthH := NewHealthHandler(svc.Health)
	mux.HandleFunc("GET /healthz", healthH.Healthz)
	if svc.Collector != nil {
		mux.Handle("GET "+svc.Collector.MetricsPath(), svc.Collector.Handler())
	}

	var handler http.Handler = mux
	if svc.Collector != nil {
		handler = RequestMetrics(svc.Collector)(handler)
	}
	return handler
}
