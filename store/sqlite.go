package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteStore provides all billing stores backed by a single SQLite database.
// Intended for single-node deployments and tests; timestamps are stored as
// unix nanoseconds, UUIDs as text.
type SQLiteStore struct {
	db *sql.DB

	subscriptions *SQLiteSubscriptionStore
	ledger        *SQLiteLedgerStore
	alerts        *SQLiteAlertConfigStore
	notifications *SQLiteAlertNotificationStore
	audit         *SQLiteAuditStore
}

// NewSQLiteStore opens (or creates) the database at path and initializes the
// schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?" + url.Values{
			"_pragma": []string{
				"busy_timeout(30000)",
				"journal_mode(WAL)",
				"synchronous(NORMAL)",
			},
		}.Encode()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.subscriptions = &SQLiteSubscriptionStore{db: db}
	s.ledger = &SQLiteLedgerStore{db: db}
	s.alerts = &SQLiteAlertConfigStore{db: db}
	s.notifications = &SQLiteAlertNotificationStore{db: db}
	s.audit = &SQLiteAuditStore{db: db}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL UNIQUE,
		plan_id TEXT NOT NULL DEFAULT 'free',
		processor_customer_id TEXT,
		processor_subscription_id TEXT,
		status TEXT NOT NULL DEFAULT 'trialing',
		current_period_start INTEGER,
		current_period_end INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_processor_customer ON subscriptions(processor_customer_id);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount REAL NOT NULL,
		balance_after REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		agent_id TEXT,
		reference_id TEXT,
		reference_type TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_tenant_created ON ledger_entries(tenant_id, created_at);

	CREATE TABLE IF NOT EXISTS budget_alerts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL UNIQUE,
		threshold_percent INTEGER NOT NULL,
		channel TEXT NOT NULL DEFAULT 'email',
		enabled INTEGER NOT NULL DEFAULT 1,
		last_triggered_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alert_notifications (
		id TEXT PRIMARY KEY,
		alert_config_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		threshold_percent INTEGER NOT NULL,
		usage_percent REAL NOT NULL,
		channel TEXT NOT NULL,
		triggered_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_notifications_tenant_triggered ON alert_notifications(tenant_id, triggered_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'info',
		details TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_tenant_created ON audit_log(tenant_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

// DB returns the underlying sql.DB.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Subscriptions returns the SubscriptionStore.
func (s *SQLiteStore) Subscriptions() SubscriptionStore { return s.subscriptions }

// Ledger returns the LedgerStore.
func (s *SQLiteStore) Ledger() LedgerStore { return s.ledger }

// Alerts returns the AlertConfigStore.
func (s *SQLiteStore) Alerts() AlertConfigStore { return s.alerts }

// Notifications returns the AlertNotificationStore.
func (s *SQLiteStore) Notifications() AlertNotificationStore { return s.notifications }

// Audit returns the AuditStore.
func (s *SQLiteStore) Audit() AuditStore { return s.audit }

// SQLiteSubscriptionStore implements SubscriptionStore backed by SQLite.
type SQLiteSubscriptionStore struct {
	db *sql.DB
}

func (s *SQLiteSubscriptionStore) Get(ctx context.Context, tenantID string) (*SubscriptionRecord, error) {
	return s.scanOne(ctx, `SELECT id, tenant_id, plan_id, processor_customer_id, processor_subscription_id,
		status, current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions WHERE tenant_id = ?`, tenantID)
}

func (s *SQLiteSubscriptionStore) GetByProcessorCustomer(ctx context.Context, customerID string) (*SubscriptionRecord, error) {
	return s.scanOne(ctx, `SELECT id, tenant_id, plan_id, processor_customer_id, processor_subscription_id,
		status, current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions WHERE processor_customer_id = ?`, customerID)
}

func (s *SQLiteSubscriptionStore) Upsert(ctx context.Context, tenantID string, p SubscriptionPatch) (*SubscriptionRecord, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, tenant_id, plan_id, processor_customer_id, processor_subscription_id,
			status, current_period_start, current_period_end, created_at, updated_at)
		VALUES (?, ?, COALESCE(?, 'free'), ?, ?, COALESCE(?, 'trialing'), ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			plan_id                   = COALESCE(?, plan_id),
			processor_customer_id     = COALESCE(?, processor_customer_id),
			processor_subscription_id = COALESCE(?, processor_subscription_id),
			status                    = COALESCE(?, status),
			current_period_start      = COALESCE(?, current_period_start),
			current_period_end        = COALESCE(?, current_period_end),
			updated_at                = ?`,
		uuid.New().String(), tenantID, p.PlanID, p.ProcessorCustomerID, p.ProcessorSubscriptionID,
		p.Status, nullNanos(p.CurrentPeriodStart), nullNanos(p.CurrentPeriodEnd), now.UnixNano(), now.UnixNano(),
		p.PlanID, p.ProcessorCustomerID, p.ProcessorSubscriptionID,
		p.Status, nullNanos(p.CurrentPeriodStart), nullNanos(p.CurrentPeriodEnd), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	return s.Get(ctx, tenantID)
}

func (s *SQLiteSubscriptionStore) List(ctx context.Context, f SubscriptionFilter) ([]*SubscriptionRecord, error) {
	query := `SELECT id, tenant_id, plan_id, processor_customer_id, processor_subscription_id,
		status, current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions WHERE 1=1`
	args := []any{}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.PlanID != "" {
		query += ` AND plan_id = ?`
		args = append(args, f.PlanID)
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	limit := f.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Pagination.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var records []*SubscriptionRecord
	for rows.Next() {
		r, err := scanSQLiteSubscription(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteSubscriptionStore) scanOne(ctx context.Context, query string, args ...any) (*SubscriptionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	return scanSQLiteSubscription(rows)
}

func scanSQLiteSubscription(rows *sql.Rows) (*SubscriptionRecord, error) {
	var (
		r                    SubscriptionRecord
		id                   string
		periodStart          sql.NullInt64
		periodEnd            sql.NullInt64
		createdAt, updatedAt int64
	)
	err := rows.Scan(&id, &r.TenantID, &r.PlanID, &r.ProcessorCustomerID, &r.ProcessorSubscriptionID,
		&r.Status, &periodStart, &periodEnd, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	r.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse subscription id: %w", err)
	}
	r.CurrentPeriodStart = nanosTime(periodStart)
	r.CurrentPeriodEnd = nanosTime(periodEnd)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &r, nil
}

var _ SubscriptionStore = (*SQLiteSubscriptionStore)(nil)

// SQLiteLedgerStore implements LedgerStore backed by SQLite.
type SQLiteLedgerStore struct {
	db *sql.DB
}

func (s *SQLiteLedgerStore) Append(ctx context.Context, e *LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, tenant_id, entry_type, amount, balance_after, description,
			agent_id, reference_id, reference_type, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID.String(), e.TenantID, e.Type, e.Amount, e.BalanceAfter, e.Description,
		e.AgentID, e.ReferenceID, e.ReferenceType, e.CreatedAt.UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: ledger entry %s", ErrDuplicate, e.ID)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *SQLiteLedgerStore) LastEntry(ctx context.Context, tenantID string) (*LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, entry_type, amount, balance_after, description,
			agent_id, reference_id, reference_type, created_at
		FROM ledger_entries WHERE tenant_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, tenantID)
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
	return scanSQLiteLedgerEntry(rows)
}

func (s *SQLiteLedgerStore) AllForTenant(ctx context.Context, tenantID string) ([]*LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, entry_type, amount, balance_after, description,
			agent_id, reference_id, reference_type, created_at
		FROM ledger_entries WHERE tenant_id = ?
		ORDER BY created_at ASC, rowid ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		e, err := scanSQLiteLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteLedgerStore) List(ctx context.Context, f LedgerFilter) ([]*LedgerEntry, error) {
	query := `SELECT id, tenant_id, entry_type, amount, balance_after, description,
		agent_id, reference_id, reference_type, created_at
		FROM ledger_entries WHERE 1=1`
	args := []any{}

	if f.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, f.TenantID)
	}
	if len(f.Types) > 0 {
		query += ` AND entry_type IN (?` + strings.Repeat(",?", len(f.Types)-1) + `)`
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if f.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, f.From.UnixNano())
	}
	if f.To != nil {
		query += ` AND created_at < ?`
		args = append(args, f.To.UnixNano())
	}

	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	limit := f.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Pagination.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		e, err := scanSQLiteLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanSQLiteLedgerEntry(rows *sql.Rows) (*LedgerEntry, error) {
	var (
		e         LedgerEntry
		id        string
		createdAt int64
	)
	err := rows.Scan(&id, &e.TenantID, &e.Type, &e.Amount, &e.BalanceAfter, &e.Description,
		&e.AgentID, &e.ReferenceID, &e.ReferenceType, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse ledger entry id: %w", err)
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	return &e, nil
}

var _ LedgerStore = (*SQLiteLedgerStore)(nil)

// SQLiteAlertConfigStore implements AlertConfigStore backed by SQLite.
type SQLiteAlertConfigStore struct {
	db *sql.DB
}

func (s *SQLiteAlertConfigStore) Get(ctx context.Context, tenantID string) (*AlertConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, threshold_percent, channel, enabled, last_triggered_at, created_at, updated_at
		FROM budget_alerts WHERE tenant_id = ?`, tenantID)
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

	var (
		a                    AlertConfig
		id                   string
		lastTriggered        sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := rows.Scan(&id, &a.TenantID, &a.ThresholdPercent, &a.Channel, &a.Enabled,
		&lastTriggered, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan alert config: %w", err)
	}
	a.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse alert config id: %w", err)
	}
	a.LastTriggeredAt = nanosTime(lastTriggered)
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	a.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &a, nil
}

func (s *SQLiteAlertConfigStore) Upsert(ctx context.Context, a *AlertConfig) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_alerts (id, tenant_id, threshold_percent, channel, enabled, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			threshold_percent = ?,
			channel           = ?,
			enabled           = ?,
			updated_at        = ?`,
		a.ID.String(), a.TenantID, a.ThresholdPercent, a.Channel, a.Enabled, now.UnixNano(), now.UnixNano(),
		a.ThresholdPercent, a.Channel, a.Enabled, now.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert alert config: %w", err)
	}

	stored, err := s.Get(ctx, a.TenantID)
	if err != nil {
		return err
	}
	*a = *stored
	return nil
}

func (s *SQLiteAlertConfigStore) ListEnabled(ctx context.Context) ([]*AlertConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, threshold_percent, channel, enabled, last_triggered_at, created_at, updated_at
		FROM budget_alerts WHERE enabled = 1 ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled alert configs: %w", err)
	}
	defer rows.Close()

	var configs []*AlertConfig
	for rows.Next() {
		var (
			a                    AlertConfig
			id                   string
			lastTriggered        sql.NullInt64
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&id, &a.TenantID, &a.ThresholdPercent, &a.Channel, &a.Enabled,
			&lastTriggered, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan alert config: %w", err)
		}
		a.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse alert config id: %w", err)
		}
		a.LastTriggeredAt = nanosTime(lastTriggered)
		a.CreatedAt = time.Unix(0, createdAt).UTC()
		a.UpdatedAt = time.Unix(0, updatedAt).UTC()
		configs = append(configs, &a)
	}
	return configs, rows.Err()
}

func (s *SQLiteAlertConfigStore) MarkTriggered(ctx context.Context, tenantID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE budget_alerts
		SET last_triggered_at = MAX(COALESCE(last_triggered_at, ?), ?), updated_at = ?
		WHERE tenant_id = ?`,
		at.UnixNano(), at.UnixNano(), time.Now().UTC().UnixNano(), tenantID)
	if err != nil {
		return fmt.Errorf("mark alert triggered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark alert triggered: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ AlertConfigStore = (*SQLiteAlertConfigStore)(nil)

// SQLiteAlertNotificationStore implements AlertNotificationStore backed by SQLite.
type SQLiteAlertNotificationStore struct {
	db *sql.DB
}

func (s *SQLiteAlertNotificationStore) Insert(ctx context.Context, n *AlertNotification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.TriggeredAt.IsZero() {
		n.TriggeredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_notifications (id, alert_config_id, tenant_id, threshold_percent, usage_percent, channel, triggered_at)
		VALUES (?,?,?,?,?,?,?)`,
		n.ID.String(), n.AlertConfigID.String(), n.TenantID, n.ThresholdPercent,
		n.UsagePercent, n.Channel, n.TriggeredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert alert notification: %w", err)
	}
	return nil
}

func (s *SQLiteAlertNotificationStore) List(ctx context.Context, f NotificationFilter) ([]*AlertNotification, error) {
	query := `SELECT id, alert_config_id, tenant_id, threshold_percent, usage_percent, channel, triggered_at
		FROM alert_notifications WHERE 1=1`
	args := []any{}

	if f.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, f.TenantID)
	}
	if f.Since != nil {
		query += ` AND triggered_at >= ?`
		args = append(args, f.Since.UnixNano())
	}

	query += ` ORDER BY triggered_at DESC LIMIT ? OFFSET ?`
	limit := f.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Pagination.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alert notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*AlertNotification
	for rows.Next() {
		var (
			n           AlertNotification
			id, cfgID   string
			triggeredAt int64
		)
		if err := rows.Scan(&id, &cfgID, &n.TenantID, &n.ThresholdPercent,
			&n.UsagePercent, &n.Channel, &triggeredAt); err != nil {
			return nil, fmt.Errorf("scan alert notification: %w", err)
		}
		n.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse alert notification id: %w", err)
		}
		n.AlertConfigID, err = uuid.Parse(cfgID)
		if err != nil {
			return nil, fmt.Errorf("parse alert config id: %w", err)
		}
		n.TriggeredAt = time.Unix(0, triggeredAt).UTC()
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

var _ AlertNotificationStore = (*SQLiteAlertNotificationStore)(nil)

// SQLiteAuditStore implements AuditStore backed by SQLite.
type SQLiteAuditStore struct {
	db *sql.DB
}

func (s *SQLiteAuditStore) Record(ctx context.Context, e *AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Severity == "" {
		e.Severity = "info"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, tenant_id, actor, action, severity, details, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		e.ID.String(), e.TenantID, e.Actor, e.Action, e.Severity, []byte(e.Details), e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

func (s *SQLiteAuditStore) Query(ctx context.Context, f AuditFilter) ([]*AuditEntry, error) {
	query := `SELECT id, tenant_id, actor, action, severity, details, created_at
		FROM audit_log WHERE 1=1`
	args := []any{}

	if f.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, f.TenantID)
	}
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, f.Since.UnixNano())
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	limit := f.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Pagination.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var (
			e         AuditEntry
			id        string
			details   []byte
			createdAt int64
		)
		if err := rows.Scan(&id, &e.TenantID, &e.Actor, &e.Action, &e.Severity, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse audit id: %w", err)
		}
		e.Details = details
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

var _ AuditStore = (*SQLiteAuditStore)(nil)

func nullNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func nanosTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
