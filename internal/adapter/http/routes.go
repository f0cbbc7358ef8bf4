package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/drawbridge-ai/drawbridge/internal/config"
	"github.com/drawbridge-ai/drawbridge/internal/middleware"
	cacheport "github.com/drawbridge-ai/drawbridge/internal/port/cache"
)

// MountRoutes registers all API routes on the given chi router. idemStore
// may be nil to disable idempotency replay.
func MountRoutes(r chi.Router, h *Handlers, cfg config.Idempotency, limiter *middleware.RateLimiter, idemStore cacheport.Cache) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.Handler)
			}
			if idemStore != nil {
				r.Use(middleware.Idempotency(idemStore, cfg.TTL, int(cfg.MaxBodySize)))
			}
			r.Post("/diagrams", h.GenerateDiagram)
		})

		r.Get("/artifacts/{id}", h.GetArtifact)
		r.Get("/artifacts/{id}/meta", h.GetArtifactMeta)
		r.Delete("/artifacts/{id}", h.DeleteArtifact)

		r.Get("/cache/stats", h.CacheStats)
		r.Post("/cache/clear", h.ClearCache)
		r.Post("/cleanup", h.RunCleanup)
	})
}
