package api

import (
	"log/slog"
	"net/http"

	"github.com/koopa0/recall/internal/cache"
)

// CacheStore is the cache surface the admin endpoints need. *cache.Store
// satisfies it.
type CacheStore interface {
	Stats() cache.Statistics
	ClearExpired() (int, error)
}

// cacheHandler serves the cache introspection and maintenance endpoints.
type cacheHandler struct {
	store  CacheStore
	logger *slog.Logger
}

// stats handles GET /api/v1/cache/stats.
func (h *cacheHandler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats())
}

// sweepResponse is the body of a successful sweep.
type sweepResponse struct {
	Cleared int              `json:"cleared"`
	Stats   cache.Statistics `json:"stats"`
}

// sweep handles POST /api/v1/cache/sweep: eagerly clears expired and corrupt
// records and reports how many were removed, with the counters after the run.
func (h *cacheHandler) sweep(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.store.ClearExpired()
	if err != nil {
		h.logger.Error("cache sweep failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "sweep_failed", "cache sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Cleared: cleared, Stats: h.store.Stats()})
}
