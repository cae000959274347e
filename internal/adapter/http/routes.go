package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/emails/{email}", h.GetBreachedEmail)
		r.Post("/emails/{email}", h.AddBreachedEmail)
	})
}
