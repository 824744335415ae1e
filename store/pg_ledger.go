package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedgerStore implements LedgerStore backed by PostgreSQL.
type PGLedgerStore struct {
	pool *pgxpool.Pool
}

const ledgerCols = `id, tenant_id, entry_type, amount, balance_after, description,
	agent_id, reference_id, reference_type, created_at`

func (s *PGLedgerStore) Append(ctx context.Context, e *LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, tenant_id, entry_type, amount, balance_after, description,
			agent_id, reference_id, reference_type, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
		RETURNING created_at`,
		e.ID, e.TenantID, e.Type, e.Amount, e.BalanceAfter, e.Description,
		e.AgentID, e.ReferenceID, e.ReferenceType).Scan(&e.CreatedAt)
	if err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("%w: ledger entry %s", ErrDuplicate, e.ID)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *PGLedgerStore) LastEntry(ctx context.Context, tenantID string) (*LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ledgerCols+` FROM ledger_entries
		WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query last ledger entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query last ledger entry: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanLedgerEntry(rows)
}

func (s *PGLedgerStore) AllForTenant(ctx context.Context, tenantID string) ([]*LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ledgerCols+` FROM ledger_entries
		WHERE tenant_id = $1 ORDER BY created_at ASC, id ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGLedgerStore) List(ctx context.Context, f LedgerFilter) ([]*LedgerEntry, error) {
	query := `SELECT ` + ledgerCols + ` FROM ledger_entries WHERE 1=1`
	args := []any{}
	idx := 1

	if f.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, idx)
		args = append(args, f.TenantID)
		idx++
	}
	if len(f.Types) > 0 {
		query += fmt.Sprintf(` AND entry_type = ANY($%d)`, idx)
		args = append(args, f.Types)
		idx++
	}
	if f.From != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		query += fmt.Sprintf(` AND created_at < $%d`, idx)
		args = append(args, *f.To)
		idx++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	limit := f.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Pagination.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanLedgerEntry(rows pgx.Rows) (*LedgerEntry, error) {
	var e LedgerEntry
	err := rows.Scan(
		&e.ID, &e.TenantID, &e.Type, &e.Amount, &e.BalanceAfter, &e.Description,
		&e.AgentID, &e.ReferenceID, &e.ReferenceType, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return &e, nil
}

var _ LedgerStore = (*PGLedgerStore)(nil)
