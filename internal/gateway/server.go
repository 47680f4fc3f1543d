package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(g.metrics.middleware)

	// Public — no auth required.
	r.Get("/health", g.handleHealth())

	// Admin endpoints — bearer auth required. Not mounted without a
	// token; an open admin API is never served by accident.
	if g.config.AuthToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.AuthToken))
			r.Get("/api/status", g.handleStatus())
			r.Route("/api/jobs", func(r chi.Router) {
				r.Get("/", g.handleListJobs())
				r.Post("/", g.handleAddJob())
				r.Get("/{id}", g.handleGetJob())
				r.Patch("/{id}", g.handleUpdateJob())
				r.Delete("/{id}", g.handleRemoveJob())
				r.Post("/{id}/pause", g.handlePauseJob())
				r.Post("/{id}/resume", g.handleResumeJob())
				r.Post("/{id}/run", g.handleRunJob())
				r.Get("/{id}/history", g.handleHistory())
				r.Delete("/{id}/history", g.handlePurgeHistory())
			})
		})
	}

	return r
}
