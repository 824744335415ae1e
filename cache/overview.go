package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/console/ledger"
)

// OverviewSource produces a tenant's ledger overview from the source of
// truth. Satisfied by the ledger aggregator.
type OverviewSource interface {
	Overview(ctx context.Context, tenantID string) (*ledger.Overview, error)
}

// OverviewCache serves ledger overviews cache-aside: reads come from the
// cache when fresh, the source otherwise. Ledger writers invalidate through
// Invalidate so a tenant sees its own mutation on the next read. Cache
// backend failures degrade to the source, never to an error.
type OverviewCache struct {
	source OverviewSource
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewOverviewCache wraps source with the given cache backend. A non-positive
// TTL falls back to 30 seconds.
func NewOverviewCache(source OverviewSource, cache Cache, ttl time.Duration, logger *slog.Logger) *OverviewCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &OverviewCache{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func overviewKey(tenantID string) string {
	return "overview:" + tenantID
}

// Overview returns the tenant's usage overview, from cache when possible.
func (o *OverviewCache) Overview(ctx context.Context, tenantID string) (*ledger.Overview, error) {
	key := overviewKey(tenantID)

	data, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		o.logger.Warn("overview cache read failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
	} else if ok {
		var ov ledger.Overview
		if err := json.Unmarshal(data, &ov); err == nil {
			return &ov, nil
		}
		o.logger.Warn("dropping undecodable overview cache entry",
			slog.String("tenant_id", tenantID))
		_ = o.cache.Delete(ctx, key)
	}

	ov, err := o.source.Overview(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(ov); err == nil {
		if err := o.cache.Set(ctx, key, data, o.ttl); err != nil {
			o.logger.Warn("overview cache write failed",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()))
		}
	}

	return ov, nil
}

// Invalidate drops the tenant's cached overview after a ledger write.
func (o *OverviewCache) Invalidate(ctx context.Context, tenantID string) {
	if err := o.cache.Delete(ctx, overviewKey(tenantID)); err != nil {
		o.logger.Warn("overview cache invalidation failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
	}
}
