package notify

import (
	"encoding/json"
	"net/http"
)

// Handler exposes the dead letter admin endpoints.
type Handler struct {
	store     *DeadLetterStore
	deliverer *Deliverer
}

// NewHandler creates the admin handler over the given store and deliverer.
func NewHandler(store *DeadLetterStore, deliverer *Deliverer) *Handler {
	return &Handler{store: store, deliverer: deliverer}
}

// RegisterRoutes registers the dead letter admin routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/admin/notifications/dead-letter", h.list)
	mux.HandleFunc("GET /api/v1/admin/notifications/dead-letter/stats", h.stats)
	mux.HandleFunc("POST /api/v1/admin/notifications/dead-letter/{id}/replay", h.replay)
	mux.HandleFunc("DELETE /api/v1/admin/notifications/dead-letter/{id}", h.remove)
	mux.HandleFunc("DELETE /api/v1/admin/notifications/dead-letter", h.purge)
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	entries := h.store.List()
	writeData(w, http.StatusOK, map[string]any{
		"items": entries,
		"total": len(entries),
	})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.store.Stats())
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	delivery, err := h.deliverer.Replay(r.Context(), id)
	if err != nil {
		if delivery != nil {
			// Replay attempted but failed again; the entry is back in the store.
			writeError(w, http.StatusUnprocessableEntity, "delivery_failed", err.Error())
			return
		}
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}

	writeData(w, http.StatusOK, delivery)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, ok := h.store.Remove(id); !ok {
		writeError(w, http.StatusNotFound, "not_found", "dead letter entry not found")
		return
	}

	writeData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) purge(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]int{"purged": h.store.Purge()})
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
