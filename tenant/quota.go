package tenant

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Quota defines API request limits for a single tenant.
type Quota struct {
	TenantID string

	// RequestsPerMinute is the sustained rate limit for billing API requests.
	RequestsPerMinute int
	// Burst is the number of requests admitted above the sustained rate.
	Burst int
}

// DefaultQuota returns the quota applied to tenants without an explicit one.
func DefaultQuota(tenantID string) Quota {
	return Quota{
		TenantID:          tenantID,
		RequestsPerMinute: 600,
		Burst:             60,
	}
}

// RateLimitError is returned by CheckRequest when a tenant has exhausted its
// request allowance. RetryAfter is how long until the next request would be
// admitted.
type RateLimitError struct {
	TenantID   string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("tenant %s exceeded request rate limit (%d/min)", e.TenantID, e.Limit)
}

// QuotaRegistry manages per-tenant rate limits. Tenants without an explicit
// quota share the registry's default; limiter state is created lazily on the
// first request from each tenant.
type QuotaRegistry struct {
	mu       sync.Mutex
	fallback Quota
	quotas   map[string]Quota
	limiters map[string]*rate.Limiter
}

// NewQuotaRegistry creates a quota registry with the default quota as its
// fallback.
func NewQuotaRegistry() *QuotaRegistry {
	return &QuotaRegistry{
		fallback: DefaultQuota(""),
		quotas:   make(map[string]Quota),
		limiters: make(map[string]*rate.Limiter),
	}
}

// SetDefaultQuota replaces the fallback quota. Limiters of tenants without an
// explicit quota are dropped so the new rate takes effect on their next
// request. Non-positive fields keep their built-in defaults.
func (r *QuotaRegistry) SetDefaultQuota(q Quota) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := DefaultQuota("")
	if q.RequestsPerMinute <= 0 {
		q.RequestsPerMinute = base.RequestsPerMinute
	}
	if q.Burst <= 0 {
		q.Burst = base.Burst
	}
	q.TenantID = ""
	r.fallback = q

	for id := range r.limiters {
		if _, ok := r.quotas[id]; !ok {
			delete(r.limiters, id)
		}
	}
}

// SetQuota sets the quota for a tenant. Any existing limiter for the tenant
// is dropped so the new rate takes effect on the next request. Non-positive
// fields are clamped to the fallback quota's values.
func (r *QuotaRegistry) SetQuota(q Quota) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q.RequestsPerMinute <= 0 {
		q.RequestsPerMinute = r.fallback.RequestsPerMinute
	}
	if q.Burst <= 0 {
		q.Burst = r.fallback.Burst
	}
	r.quotas[q.TenantID] = q
	delete(r.limiters, q.TenantID)
}

// GetQuota returns the explicitly configured quota for a tenant.
func (r *QuotaRegistry) GetQuota(tenantID string) (Quota, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotas[tenantID]
	return q, ok
}

// EffectiveQuota returns the quota enforced for a tenant, falling back to the
// registry default when none is configured.
func (r *QuotaRegistry) EffectiveQuota(tenantID string) Quota {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.effectiveLocked(tenantID)
}

// RemoveQuota removes a tenant's quota and limiter state. The tenant falls
// back to the default quota on its next request.
func (r *QuotaRegistry) RemoveQuota(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.quotas, tenantID)
	delete(r.limiters, tenantID)
}

// CheckRequest consumes one request from the tenant's allowance. Returns nil
// if admitted, or a *RateLimitError describing when to retry.
func (r *QuotaRegistry) CheckRequest(tenantID string) error {
	r.mu.Lock()
	quota := r.effectiveLocked(tenantID)
	lim := r.limiterLocked(tenantID, quota)
	r.mu.Unlock()

	res := lim.Reserve()
	if d := res.Delay(); d > 0 {
		// Cancel so the token is returned; we are rejecting this request.
		res.Cancel()
		return &RateLimitError{
			TenantID:   tenantID,
			Limit:      quota.RequestsPerMinute,
			RetryAfter: d,
		}
	}
	return nil
}

// QuotaSnapshot is a point-in-time view of a tenant's rate limit state.
type QuotaSnapshot struct {
	TenantID          string
	RequestsPerMinute int
	Burst             int
	TokensRemaining   float64
}

// Snapshot returns the current rate limit state for a tenant. The second
// return is false when the tenant has not made any requests yet.
func (r *QuotaRegistry) Snapshot(tenantID string) (QuotaSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.limiters[tenantID]
	if !ok {
		return QuotaSnapshot{}, false
	}
	q := r.effectiveLocked(tenantID)
	return QuotaSnapshot{
		TenantID:          tenantID,
		RequestsPerMinute: q.RequestsPerMinute,
		Burst:             q.Burst,
		TokensRemaining:   lim.Tokens(),
	}, true
}

func (r *QuotaRegistry) effectiveLocked(tenantID string) Quota {
	if q, ok := r.quotas[tenantID]; ok {
		return q
	}
	q := r.fallback
	q.TenantID = tenantID
	return q
}

func (r *QuotaRegistry) limiterLocked(tenantID string, q Quota) *rate.Limiter {
	lim, ok := r.limiters[tenantID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(q.RequestsPerMinute)/60.0), q.Burst)
		r.limiters[tenantID] = lim
	}
	return lim
}
