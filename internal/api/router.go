package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	apiPrefix     = "/api/v1"
	defaultWSPath = apiPrefix + "/ws"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}

	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/decisions", s.handleListDecisions)

		if sub, ok := strings.CutPrefix(wsPath, apiPrefix); ok && strings.HasPrefix(sub, "/") {
			r.Get(sub, s.handleWebSocket)
		}
	})

	if !strings.HasPrefix(wsPath, apiPrefix+"/") {
		r.Get(wsPath, s.handleWebSocket)
	}

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
