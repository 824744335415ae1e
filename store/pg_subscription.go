package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSubscriptionStore implements SubscriptionStore backed by PostgreSQL.
type PGSubscriptionStore struct {
	pool *pgxpool.Pool
}

const subscriptionCols = `id, tenant_id, plan_id, processor_customer_id, processor_subscription_id,
	status, current_period_start, current_period_end, created_at, updated_at`

func (s *PGSubscriptionStore) Get(ctx context.Context, tenantID string) (*SubscriptionRecord, error) {
	return s.scanOne(ctx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE tenant_id = $1`, tenantID)
}

func (s *PGSubscriptionStore) GetByProcessorCustomer(ctx context.Context, customerID string) (*SubscriptionRecord, error) {
	return s.scanOne(ctx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE processor_customer_id = $1`, customerID)
}

// Upsert inserts or updates the tenant's single subscription row. The row
// conflict on tenant_id is the concurrency primitive: redelivered webhooks
// and racing syncs all converge on the same row, nil patch fields keep the
// stored value.
func (s *PGSubscriptionStore) Upsert(ctx context.Context, tenantID string, p SubscriptionPatch) (*SubscriptionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		INSERT INTO subscriptions (id, tenant_id, plan_id, processor_customer_id, processor_subscription_id,
			status, current_period_start, current_period_end, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3::text, 'free'), $4, $5, COALESCE($6::text, 'trialing'), $7, $8, NOW(), NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan_id                   = COALESCE($3::text, subscriptions.plan_id),
			processor_customer_id     = COALESCE($4::text, subscriptions.processor_customer_id),
			processor_subscription_id = COALESCE($5::text, subscriptions.processor_subscription_id),
			status                    = COALESCE($6::text, subscriptions.status),
			current_period_start      = COALESCE($7::timestamptz, subscriptions.current_period_start),
			current_period_end        = COALESCE($8::timestamptz, subscriptions.current_period_end),
			updated_at                = NOW()
		RETURNING `+subscriptionCols,
		uuid.New(), tenantID, p.PlanID, p.ProcessorCustomerID, p.ProcessorSubscriptionID,
		p.Status, p.CurrentPeriodStart, p.CurrentPeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("upsert subscription: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanSubscription(rows)
}

func (s *PGSubscriptionStore) List(ctx context.Context, f SubscriptionFilter) ([]*SubscriptionRecord, error) {
	query := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE 1=1`
	args := []any{}
	idx := 1

	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.PlanID != "" {
		query += fmt.Sprintf(` AND plan_id = $%d`, idx)
		args = append(args, f.PlanID)
		idx++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	limit := f.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Pagination.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var records []*SubscriptionRecord
	for rows.Next() {
		r, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PGSubscriptionStore) scanOne(ctx context.Context, query string, args ...any) (*SubscriptionRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query subscription: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanSubscription(rows)
}

func scanSubscription(rows pgx.Rows) (*SubscriptionRecord, error) {
	var r SubscriptionRecord
	err := rows.Scan(
		&r.ID, &r.TenantID, &r.PlanID, &r.ProcessorCustomerID, &r.ProcessorSubscriptionID,
		&r.Status, &r.CurrentPeriodStart, &r.CurrentPeriodEnd, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &r, nil
}

var _ SubscriptionStore = (*PGSubscriptionStore)(nil)
