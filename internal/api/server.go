// Package api exposes the answer pipeline over HTTP as a JSON API.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Generator   Answerer      // Required
	Notifier    Deliverer     // Required
	Cache       CacheStore    // Required
	Pool        *pgxpool.Pool // Optional: nil makes /ready always fail
	CORSOrigins []string      // Allowed origins for CORS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("cache store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qh := &queryHandler{generator: cfg.Generator, notifier: cfg.Notifier, logger: logger}
	ch := &cacheHandler{store: cfg.Cache, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", qh.query)
	mux.HandleFunc("GET /api/v1/cache/stats", ch.stats)
	mux.HandleFunc("POST /api/v1/cache/sweep", ch.sweep)

	// Rate limiter: per-IP token bucket (1 token/sec refill).
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery > RequestID > Logging > CORS > RateLimit > Routes
	// RequestID must precede Logging so request_id is available in log
	// attributes. CORS must precede RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
