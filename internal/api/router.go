package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Command endpoints
		r.Route("/commands", func(r chi.Router) {
			r.Get("/", s.handleListCommands)
			r.Post("/", s.handleCreateCommand)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCommand)
				r.Delete("/", s.handleRetireCommand)
				r.Post("/cancel", s.handleCancelCommand)
				r.Get("/history", s.handleCommandHistory)
			})
		})

		// Command dictionary
		r.Get("/definitions", s.handleGetDefinitions)

		// State endpoints
		r.Route("/state", func(r chi.Router) {
			r.Get("/", s.handleGetState)
			r.Patch("/", s.handlePatchState)
			r.Get("/{property}", s.handleGetProperty)
		})

		// WebSocket state/command stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
