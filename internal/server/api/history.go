package api

import (
	"net/http"

	"github.com/ayusman/lingolens/internal/store"
)

// HistoryHandler serves the translation history.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a new HistoryHandler with the given store.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type historyResponse struct {
	Entries []*store.HistoryEntry `json:"entries"`
	Total   int                   `json:"total"`
}

// List handles GET /api/history?limit=N and returns entries newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", store.DefaultHistoryLimit)
	if err != nil || limit < 0 {
		WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	entries, err := h.store.History().List(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []*store.HistoryEntry{}
	}

	total, err := h.store.History().Count()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to count history")
		return
	}

	WriteJSON(w, http.StatusOK, historyResponse{Entries: entries, Total: total})
}

// Clear handles DELETE /api/history.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.History().Clear(); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
