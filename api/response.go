package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/store"
)

// errorBody is the error half of the response envelope. Every failure the API
// returns carries a stable machine-readable code next to the human message.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// paginatedBody wraps a list payload with pagination metadata.
type paginatedBody struct {
	Items    any `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// WriteJSON writes a success response wrapped in the data envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// WriteError writes a JSON error response with the given code and message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": errorBody{Code: code, Message: message}})
}

// WritePaginated writes a paginated list response.
func WritePaginated(w http.ResponseWriter, items any, total, page, pageSize int) {
	WriteJSON(w, http.StatusOK, paginatedBody{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// writeDomainError translates a failure from the billing, ledger, or alert
// layer into an HTTP response. Caller-fault classifications surface their
// message; server-side failures are logged and answered with a generic body
// so internal detail never leaks.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "not found")
		return
	}

	var be *billing.Error
	if errors.As(err, &be) {
		switch be.Code {
		case billing.CodeValidation:
			WriteError(w, http.StatusBadRequest, string(be.Code), be.Message)
		case billing.CodeUnauthorized:
			WriteError(w, http.StatusUnauthorized, string(be.Code), be.Message)
		case billing.CodeInvalidSignature:
			WriteError(w, http.StatusBadRequest, string(be.Code), be.Message)
		case billing.CodeNotImplemented:
			WriteError(w, http.StatusNotImplemented, string(be.Code), be.Message)
		case billing.CodeConfiguration:
			logger.Error("request hit a configuration problem", "error", err)
			WriteError(w, http.StatusInternalServerError, string(be.Code), "server is misconfigured")
		default:
			logger.Error("request failed", "code", string(be.Code), "error", err)
			WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		}
		return
	}

	logger.Error("request failed", "error", err)
	WriteError(w, http.StatusInternalServerError, "internal", "internal error")
}
