package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.handleListNodes)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetNode)
				r.Post("/command", s.handleNodeCommand)
			})
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", s.handleListSchedules)
			r.Post("/", s.handleCreateSchedule)
			r.Delete("/{id}", s.handleDeleteSchedule)
		})
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"nodes":   s.store.Count(),
	}
	if s.hub != nil {
		body["ws_clients"] = s.hub.ClientCount()
	}
	if s.snapStatus != nil {
		last, err := s.snapStatus()
		if !last.IsZero() {
			body["last_sync"] = last.UTC().Format(time.RFC3339)
		}
		if err != nil {
			body["status"] = "degraded"
			body["sync_error"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, body)
}
