package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/console/alert"
	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/store"
	"github.com/GoCodeAlone/console/tenant"
)

// AlertsHandler serves the budget alert configuration endpoints.
type AlertsHandler struct {
	alerts *alert.Service
	logger *slog.Logger
}

func NewAlertsHandler(alerts *alert.Service, logger *slog.Logger) *AlertsHandler {
	return &AlertsHandler{alerts: alerts, logger: logger}
}

// Get handles GET /api/v1/billing/alerts.
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.alerts.Get(r.Context(), tenant.TenantFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "no alert configuration for tenant")
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// Update handles PATCH /api/v1/billing/alerts. Absent fields keep their
// stored values; the response reports whether the saved threshold is already
// exceeded by current usage.
func (h *AlertsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ThresholdPercent *int    `json:"threshold_percent"`
		Channel          *string `json:"channel"`
		Enabled          *bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	params := alert.UpdateParams{
		ThresholdPercent: req.ThresholdPercent,
		Enabled:          req.Enabled,
	}
	if req.Channel != nil {
		ch := store.AlertChannel(*req.Channel)
		params.Channel = &ch
	}

	cfg, exceeded, err := h.alerts.Update(r.Context(), tenant.TenantFromContext(r.Context()), params)
	if err != nil {
		var be *billing.Error
		if errors.As(err, &be) && be.Code == billing.CodeValidation {
			WriteError(w, http.StatusUnprocessableEntity, string(be.Code), be.Message)
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"alert":              cfg,
		"threshold_exceeded": exceeded,
	})
}
