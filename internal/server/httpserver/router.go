package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// StatusFunc reports the current state served on /status. It must be safe
// for concurrent use.
type StatusFunc func() any

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler

	// Status serves /status. Nil disables the route.
	Status StatusFunc

	// Ready reports whether /ready should answer 200. Nil means always ready.
	Ready func() bool

	// Logger for request logging.
	Logger *slog.Logger

	// RateLimit is the per-IP request rate (requests/second). 0 disables it.
	RateLimit int

	// AccessLog enables request logging.
	AccessLog bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit: 100,
		AccessLog: true,
	}
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil && !cfg.Ready() {
			writeError(w, http.StatusServiceUnavailable, "PN-SYS-5030", "not ready")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	if cfg.Status != nil {
		mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, cfg.Status())
		})
	}

	// Order: Recover -> RequestID -> RateLimit -> AccessLog -> mux
	middlewares := []Middleware{Recover(logger), RequestID()}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit))
	}
	if cfg.AccessLog {
		middlewares = append(middlewares, AccessLog(logger))
	}
	return Chain(mux, middlewares...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a coded error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("X-Error-Code", code)
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
