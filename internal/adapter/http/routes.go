package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/quorumgate/internal/middleware"
)

// MountRoutes registers the API on r. When limiter is non-nil it throttles
// validation submissions.
func MountRoutes(r chi.Router, h *Handlers, limiter *middleware.RateLimiter) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.Handler)
			}
			r.Post("/validations", h.SubmitValidation)
		})

		r.Get("/agents", h.ListAgents)
		r.Get("/audit", h.ListAudit)
		r.Get("/audit/verify", h.VerifyAudit)
		r.Get("/breakers", h.ListBreakers)
		r.Get("/alerts", h.ListAlerts)
		r.Get("/metrics", h.ListMetrics)
		r.Get("/security-decisions", h.ListSecurityDecisions)
	})
}
