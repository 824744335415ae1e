package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// TenantIDKey is the context key under which the resolved tenant ID is stored.
const TenantIDKey contextKey = "tenant_id"

// TenantHeaderName is the HTTP header used to identify the tenant when no
// JWT secret is configured.
const TenantHeaderName = "X-Tenant-ID"

// TenantFromContext extracts the tenant ID from a context.
// Returns empty string if no tenant is set.
func TenantFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithTenant returns a new context with the tenant ID set.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// Resolver authenticates requests and places the resolved tenant ID in the
// request context. With a JWT secret configured it requires an HS256 bearer
// token carrying a tenant_id claim. Without one it trusts the X-Tenant-ID
// header, which is only suitable for local development and tests.
type Resolver struct {
	// HeaderName is the header consulted when no JWT secret is configured.
	HeaderName string
	// AllowedTenants restricts access to the listed tenants. Nil allows all.
	AllowedTenants map[string]bool

	jwtSecret []byte
}

// NewResolver creates a tenant resolver. An empty jwtSecret selects header
// resolution; a non-empty one requires bearer tokens on every request.
func NewResolver(jwtSecret []byte) *Resolver {
	return &Resolver{
		HeaderName: TenantHeaderName,
		jwtSecret:  jwtSecret,
	}
}

// SetAllowedTenants restricts the resolver to the given tenant IDs.
func (rv *Resolver) SetAllowedTenants(tenantIDs []string) {
	allowed := make(map[string]bool, len(tenantIDs))
	for _, id := range tenantIDs {
		allowed[id] = true
	}
	rv.AllowedTenants = allowed
}

// Process wraps an HTTP handler with tenant resolution.
func (rv *Resolver) Process(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tenantID string
		if len(rv.jwtSecret) > 0 {
			id, err := rv.tenantFromToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token")
				return
			}
			tenantID = id
		} else {
			tenantID = strings.TrimSpace(r.Header.Get(rv.HeaderName))
			if tenantID == "" {
				writeError(w, http.StatusBadRequest, "validation",
					fmt.Sprintf("missing tenant ID in %s header", rv.HeaderName))
				return
			}
		}

		if rv.AllowedTenants != nil && !rv.AllowedTenants[tenantID] {
			writeError(w, http.StatusForbidden, "forbidden",
				fmt.Sprintf("tenant %s is not allowed", tenantID))
			return
		}

		ctx := ContextWithTenant(r.Context(), tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tenantFromToken extracts the Bearer token, validates it, and returns the
// tenant_id claim.
func (rv *Resolver) tenantFromToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", jwt.ErrTokenMalformed
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return rv.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenMalformed
	}

	tenantID, _ := claims["tenant_id"].(string)
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return tenantID, nil
}

// QuotaEnforcer is an HTTP middleware that applies per-tenant request rate
// limits. It must run after the Resolver so the tenant ID is in context.
type QuotaEnforcer struct {
	Registry *QuotaRegistry
}

// NewQuotaEnforcer creates a new quota enforcer middleware.
func NewQuotaEnforcer(registry *QuotaRegistry) *QuotaEnforcer {
	return &QuotaEnforcer{Registry: registry}
}

// Process wraps an HTTP handler with quota enforcement. Requests without a
// tenant in context pass through untouched; resolution runs first and rejects
// those on its own.
func (qe *QuotaEnforcer) Process(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantFromContext(r.Context())
		if tenantID == "" || qe.Registry == nil {
			next.ServeHTTP(w, r)
			return
		}

		if err := qe.Registry.CheckRequest(tenantID); err != nil {
			retryAfter := 1
			var rl *RateLimitError
			if errors.As(err, &rl) {
				if secs := int(math.Ceil(rl.RetryAfter.Seconds())); secs > retryAfter {
					retryAfter = secs
				}
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
