package alert

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/metrics"
	"github.com/GoCodeAlone/console/store"
)

// UsageSource reports a tenant's absolute credit usage for the current
// calendar month. *ledger.Aggregator satisfies this.
type UsageSource interface {
	PeriodUsage(ctx context.Context, tenantID string) (float64, error)
}

// Detector evaluates budget alert configurations against month-to-date
// usage and hands breaches to the Dispatcher.
type Detector struct {
	alerts     store.AlertConfigStore
	subs       store.SubscriptionStore
	usage      UsageSource
	dispatcher *Dispatcher
	logger     *slog.Logger
	collector  *metrics.Collector
	now        func() time.Time
}

// NewDetector creates a Detector. collector may be nil.
func NewDetector(
	alerts store.AlertConfigStore,
	subs store.SubscriptionStore,
	usage UsageSource,
	dispatcher *Dispatcher,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Detector {
	return &Detector{
		alerts:     alerts,
		subs:       subs,
		usage:      usage,
		dispatcher: dispatcher,
		logger:     logger,
		collector:  collector,
		now:        time.Now,
	}
}

// CheckAndTrigger evaluates the tenant's alert configuration and, on a
// breach, advances last_triggered_at and dispatches a notification.
//
// Tenants with no configuration, a disabled configuration, a non-positive
// threshold, or a plan without a credit limit are not checkable and report
// false without error. Every call that still satisfies the threshold
// re-triggers; deduplication is the caller's invocation cadence.
func (d *Detector) CheckAndTrigger(ctx context.Context, tenantID string) (bool, error) {
	cfg, err := d.alerts.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, billing.Wrap(billing.CodePersistence, err, "read alert config")
	}
	if !cfg.Enabled || cfg.ThresholdPercent <= 0 {
		return false, nil
	}

	limit, err := d.monthlyLimit(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if limit <= 0 {
		return false, nil
	}

	used, err := d.usage.PeriodUsage(ctx, tenantID)
	if err != nil {
		return false, err
	}

	usagePercent := used / limit * 100
	if usagePercent < float64(cfg.ThresholdPercent) {
		return false, nil
	}

	now := d.now()
	// The notification record is the authoritative trail; a failed timestamp
	// advance must not swallow the breach.
	if err := d.alerts.MarkTriggered(ctx, tenantID, now); err != nil {
		d.logger.Error("failed to advance alert trigger time",
			"tenant_id", tenantID,
			"error", err,
		)
	}
	d.logger.Info("budget alert threshold breached",
		"tenant_id", tenantID,
		"usage_percent", usagePercent,
		"threshold_percent", cfg.ThresholdPercent,
	)
	d.dispatcher.Dispatch(ctx, cfg.ID, tenantID, cfg.ThresholdPercent, usagePercent, cfg.Channel)
	return true, nil
}

// Sweep runs CheckAndTrigger for every enabled alert configuration.
// Per-tenant failures are logged and do not stop the pass; the first one is
// returned alongside the breach count.
func (d *Detector) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	configs, err := d.alerts.ListEnabled(ctx)
	if err != nil {
		return 0, billing.Wrap(billing.CodePersistence, err, "list alert configs for sweep")
	}

	breached := 0
	var firstErr error
	for _, cfg := range configs {
		hit, err := d.CheckAndTrigger(ctx, cfg.TenantID)
		if err != nil {
			d.logger.Error("alert sweep check failed",
				"tenant_id", cfg.TenantID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if hit {
			breached++
		}
	}

	if d.collector != nil {
		d.collector.RecordAlertSweep(time.Since(start))
	}
	d.logger.Info("alert sweep complete",
		"configs", len(configs),
		"breached", breached,
	)
	return breached, firstErr
}

// monthlyLimit resolves the tenant's plan credit allowance. Tenants with no
// subscription record are on the free plan, matching the store's insert
// default. Unknown plan ids and unlimited plans report no limit.
func (d *Detector) monthlyLimit(ctx context.Context, tenantID string) (float64, error) {
	planID := billing.PlanFree.ID
	sub, err := d.subs.Get(ctx, tenantID)
	switch {
	case err == nil:
		planID = sub.PlanID
	case !errors.Is(err, store.ErrNotFound):
		return 0, billing.Wrap(billing.CodePersistence, err, "read subscription for alert check")
	}

	plan := billing.PlanByID(planID)
	if plan == nil {
		d.logger.Warn("alert check skipped, unknown plan",
			"tenant_id", tenantID,
			"plan_id", planID,
		)
		return 0, nil
	}
	return plan.MonthlyCredits, nil
}
