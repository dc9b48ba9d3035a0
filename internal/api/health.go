package api

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// health is a liveness probe. Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness returns a readiness probe handler that verifies database
// connectivity. A nil pool always reads as not ready.
func readiness(pool *pgxpool.Pool, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "database pool not configured")
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			logger.Error("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", "database not ready")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}
