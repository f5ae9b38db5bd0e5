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
	r.Use(s.hostValidationMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// Thing resources
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/", s.handleThing)

		r.Route("/properties", func(r chi.Router) {
			r.Get("/", s.handleListProperties)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetProperty)
				r.Put("/", s.handleSetProperty)
				r.Get("/history", s.handlePropertyHistory)
			})
		})

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", s.handleListActions)
			r.Post("/", s.handleRequestActions)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleListActions)
				r.Post("/", s.handleRequestAction)
				r.Get("/{id}", s.handleGetAction)
				r.Delete("/{id}", s.handleGetAction)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Get("/{name}", s.handleListEvents)
		})
	})

	return r
}
