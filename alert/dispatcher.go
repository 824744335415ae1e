package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/console/audit"
	"github.com/GoCodeAlone/console/metrics"
	"github.com/GoCodeAlone/console/store"
)

// Queue hands persisted notifications to the delivery worker. Enqueue must
// not block.
type Queue interface {
	Enqueue(n *store.AlertNotification)
}

// Dispatcher records the decision to notify. Channel delivery is owned by
// the queue consumer. Persistence failures are logged and never propagated:
// alerting is best-effort relative to the ledger and subscription writes
// that trigger it.
type Dispatcher struct {
	notifications store.AlertNotificationStore
	queue         Queue
	logger        *slog.Logger
	collector     *metrics.Collector
	auditLog      *audit.Logger
	now           func() time.Time
}

// NewDispatcher creates a Dispatcher. queue, collector and auditLog may be
// nil.
func NewDispatcher(
	notifications store.AlertNotificationStore,
	queue Queue,
	logger *slog.Logger,
	collector *metrics.Collector,
	auditLog *audit.Logger,
) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		queue:         queue,
		logger:        logger,
		collector:     collector,
		auditLog:      auditLog,
		now:           time.Now,
	}
}

// Dispatch persists one breach notification and hands it off for delivery.
// The hand-off happens even when the insert fails; the record is the audit
// trail, not a delivery precondition.
func (d *Dispatcher) Dispatch(ctx context.Context, alertConfigID uuid.UUID, tenantID string, thresholdPercent int, usagePercent float64, channel store.AlertChannel) {
	n := &store.AlertNotification{
		AlertConfigID:    alertConfigID,
		TenantID:         tenantID,
		ThresholdPercent: thresholdPercent,
		UsagePercent:     usagePercent,
		Channel:          channel,
		TriggeredAt:      d.now(),
	}
	if err := d.notifications.Insert(ctx, n); err != nil {
		d.logger.Error("failed to persist alert notification",
			"tenant_id", tenantID,
			"channel", string(channel),
			"error", err,
		)
	}

	if d.collector != nil {
		d.collector.RecordAlertTriggered(string(channel))
	}
	if d.auditLog != nil {
		d.auditLog.LogAlertTriggered(ctx, tenantID, usagePercent, thresholdPercent)
	}
	if d.queue != nil {
		d.queue.Enqueue(n)
	}
}
