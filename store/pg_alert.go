package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGAlertConfigStore implements AlertConfigStore backed by PostgreSQL.
type PGAlertConfigStore struct {
	pool *pgxpool.Pool
}

func (s *PGAlertConfigStore) Get(ctx context.Context, tenantID string) (*AlertConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, threshold_percent, channel, enabled, last_triggered_at, created_at, updated_at
		FROM budget_alerts WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query alert config: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query alert config: %w", err)
		}
		return nil, ErrNotFound
	}
	var a AlertConfig
	if err := rows.Scan(&a.ID, &a.TenantID, &a.ThresholdPercent, &a.Channel, &a.Enabled,
		&a.LastTriggeredAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan alert config: %w", err)
	}
	return &a, nil
}

// Upsert writes threshold, channel and enabled. last_triggered_at is owned by
// MarkTriggered and never touched here.
func (s *PGAlertConfigStore) Upsert(ctx context.Context, a *AlertConfig) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO budget_alerts (id, tenant_id, threshold_percent, channel, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			threshold_percent = $3,
			channel           = $4,
			enabled           = $5,
			updated_at        = NOW()
		RETURNING id, last_triggered_at, created_at, updated_at`,
		a.ID, a.TenantID, a.ThresholdPercent, a.Channel, a.Enabled).Scan(
		&a.ID, &a.LastTriggeredAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert alert config: %w", err)
	}
	return nil
}

func (s *PGAlertConfigStore) ListEnabled(ctx context.Context) ([]*AlertConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, threshold_percent, channel, enabled, last_triggered_at, created_at, updated_at
		FROM budget_alerts WHERE enabled ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled alert configs: %w", err)
	}
	defer rows.Close()

	var configs []*AlertConfig
	for rows.Next() {
		var a AlertConfig
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ThresholdPercent, &a.Channel, &a.Enabled,
			&a.LastTriggeredAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alert config: %w", err)
		}
		configs = append(configs, &a)
	}
	return configs, rows.Err()
}

func (s *PGAlertConfigStore) MarkTriggered(ctx context.Context, tenantID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE budget_alerts
		SET last_triggered_at = GREATEST(COALESCE(last_triggered_at, $2::timestamptz), $2::timestamptz),
			updated_at = NOW()
		WHERE tenant_id = $1`, tenantID, at)
	if err != nil {
		return fmt.Errorf("mark alert triggered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ AlertConfigStore = (*PGAlertConfigStore)(nil)

// PGAlertNotificationStore implements AlertNotificationStore backed by PostgreSQL.
type PGAlertNotificationStore struct {
	pool *pgxpool.Pool
}

func (s *PGAlertNotificationStore) Insert(ctx context.Context, n *AlertNotification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alert_notifications (id, alert_config_id, tenant_id, threshold_percent, usage_percent, channel, triggered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING triggered_at`,
		n.ID, n.AlertConfigID, n.TenantID, n.ThresholdPercent, n.UsagePercent, n.Channel, n.TriggeredAt).Scan(&n.TriggeredAt)
	if err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("%w: alert notification %s", ErrDuplicate, n.ID)
		}
		return fmt.Errorf("insert alert notification: %w", err)
	}
	return nil
}

func (s *PGAlertNotificationStore) List(ctx context.Context, f NotificationFilter) ([]*AlertNotification, error) {
	query := `SELECT id, alert_config_id, tenant_id, threshold_percent, usage_percent, channel, triggered_at
		FROM alert_notifications WHERE 1=1`
	args := []any{}
	idx := 1

	if f.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, idx)
		args = append(args, f.TenantID)
		idx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(` AND triggered_at >= $%d`, idx)
		args = append(args, *f.Since)
		idx++
	}

	query += fmt.Sprintf(` ORDER BY triggered_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	limit := f.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Pagination.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alert notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*AlertNotification
	for rows.Next() {
		var n AlertNotification
		if err := rows.Scan(&n.ID, &n.AlertConfigID, &n.TenantID, &n.ThresholdPercent,
			&n.UsagePercent, &n.Channel, &n.TriggeredAt); err != nil {
			return nil, fmt.Errorf("scan alert notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

var _ AlertNotificationStore = (*PGAlertNotificationStore)(nil)
