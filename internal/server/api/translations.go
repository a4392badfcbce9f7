package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/lingolens/internal/store"
)

// TranslationsHandler exposes the translation cache.
type TranslationsHandler struct {
	store *store.Store
}

// NewTranslationsHandler creates a new TranslationsHandler with the given store.
func NewTranslationsHandler(s *store.Store) *TranslationsHandler {
	return &TranslationsHandler{store: s}
}

type cacheStatsResponse struct {
	Entries int `json:"entries"`
}

type pruneRequest struct {
	// OlderThan is a Go duration such as "720h".
	OlderThan string `json:"older_than"`
}

type pruneResponse struct {
	Removed int64 `json:"removed"`
}

// Stats handles GET /api/translations.
func (h *TranslationsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Translations().Count()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to count translations")
		return
	}
	WriteJSON(w, http.StatusOK, cacheStatsResponse{Entries: n})
}

// Prune handles POST /api/translations/prune and drops entries not used
// within the given duration.
func (h *TranslationsHandler) Prune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	age, err := time.ParseDuration(req.OlderThan)
	if err != nil || age <= 0 {
		WriteError(w, http.StatusBadRequest, "older_than must be a positive duration")
		return
	}

	removed, err := h.store.Translations().Prune(time.Now().Add(-age))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to prune translations")
		return
	}
	WriteJSON(w, http.StatusOK, pruneResponse{Removed: removed})
}
