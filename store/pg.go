package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGConfig holds PostgreSQL connection configuration.
type PGConfig struct {
	URL      string `yaml:"url" json:"url"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
	MinConns int32  `yaml:"min_conns" json:"min_conns"`
}

// PGStore wraps a pgxpool.Pool and provides access to all billing stores.
type PGStore struct {
	pool *pgxpool.Pool

	subscriptions *PGSubscriptionStore
	ledger        *PGLedgerStore
	alerts        *PGAlertConfigStore
	notifications *PGAlertNotificationStore
	audit         *PGAuditStore
}

// NewPGStore connects to PostgreSQL and returns a PGStore with all sub-stores.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pg config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}

	s := &PGStore{pool: pool}
	s.subscriptions = &PGSubscriptionStore{pool: pool}
	s.ledger = &PGLedgerStore{pool: pool}
	s.alerts = &PGAlertConfigStore{pool: pool}
	s.notifications = &PGAlertNotificationStore{pool: pool}
	s.audit = &PGAuditStore{pool: pool}

	return s, nil
}

// Pool returns the underlying pgxpool.Pool.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

// Close closes the connection pool.
func (s *PGStore) Close() { s.pool.Close() }

// Ping verifies the database connection.
func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Subscriptions returns the SubscriptionStore.
func (s *PGStore) Subscriptions() SubscriptionStore { return s.subscriptions }

// Ledger returns the LedgerStore.
func (s *PGStore) Ledger() LedgerStore { return s.ledger }

// Alerts returns the AlertConfigStore.
func (s *PGStore) Alerts() AlertConfigStore { return s.alerts }

// Notifications returns the AlertNotificationStore.
func (s *PGStore) Notifications() AlertNotificationStore { return s.notifications }

// Audit returns the AuditStore.
func (s *PGStore) Audit() AuditStore { return s.audit }
