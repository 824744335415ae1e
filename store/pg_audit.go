package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGAuditStore implements AuditStore backed by PostgreSQL.
type PGAuditStore struct {
	pool *pgxpool.Pool
}

func (s *PGAuditStore) Record(ctx context.Context, e *AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Severity == "" {
		e.Severity = "info"
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO audit_log (id, tenant_id, actor, action, severity, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		RETURNING created_at`,
		e.ID, e.TenantID, e.Actor, e.Action, e.Severity, e.Details).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

func (s *PGAuditStore) Query(ctx context.Context, f AuditFilter) ([]*AuditEntry, error) {
	query := `SELECT id, tenant_id, actor, action, severity, details, created_at
		FROM audit_log WHERE 1=1`
	args := []any{}
	idx := 1

	if f.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, idx)
		args = append(args, f.TenantID)
		idx++
	}
	if f.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, idx)
		args = append(args, f.Action)
		idx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, idx)
		args = append(args, *f.Since)
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
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(&e.ID, &e.TenantID, &e.Actor, &e.Action, &e.Severity, &e.Details, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

var _ AuditStore = (*PGAuditStore)(nil)

// isDuplicateError checks for PostgreSQL unique-violation (23505).
func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
