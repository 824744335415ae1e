package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/console/ledger"
	"github.com/GoCodeAlone/console/store"
	"github.com/GoCodeAlone/console/tenant"
)

// OverviewProvider supplies the tenant usage overview. Both the aggregator
// and its caching wrapper satisfy this, so the handler does not care whether
// a cache is configured.
type OverviewProvider interface {
	Overview(ctx context.Context, tenantID string) (*ledger.Overview, error)
}

// UsageHandler serves the usage overview and ledger history endpoints.
type UsageHandler struct {
	overviews OverviewProvider
	credits   *ledger.Service
	logger    *slog.Logger
}

func NewUsageHandler(overviews OverviewProvider, credits *ledger.Service, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{overviews: overviews, credits: credits, logger: logger}
}

// Overview handles GET /api/v1/billing/usage.
func (h *UsageHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.overviews.Overview(r.Context(), tenant.TenantFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, ov)
}

// Ledger handles GET /api/v1/billing/ledger.
func (h *UsageHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := store.LedgerFilter{
		TenantID: tenant.TenantFromContext(r.Context()),
		Pagination: store.Pagination{
			Offset: (page - 1) * pageSize,
			Limit:  pageSize,
		},
	}

	if v := r.URL.Query().Get("type"); v != "" {
		et := store.LedgerEntryType(v)
		if !store.ValidLedgerEntryTypes[et] {
			WriteError(w, http.StatusBadRequest, "validation", "invalid entry type "+strconv.Quote(v))
			return
		}
		filter.Types = []store.LedgerEntryType{et}
	}
	if v := r.URL.Query().Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation", "from must be an RFC 3339 timestamp")
			return
		}
		filter.From = &ts
	}
	if v := r.URL.Query().Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation", "to must be an RFC 3339 timestamp")
			return
		}
		filter.To = &ts
	}

	entries, err := h.credits.History(r.Context(), filter)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*store.LedgerEntry{}
	}
	WritePaginated(w, entries, len(entries), page, pageSize)
}

// --- helpers ---

func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 50
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}
	return page, pageSize
}
