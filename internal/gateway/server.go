package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(g.instrument)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if g.limiter != nil {
			r.Use(rateLimitMiddleware(g.limiter, g.deps.Audit))
		}
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.deps.Audit, g.limiter))
		}
		r.Post("/envelopes", g.handleBuild())
		r.Post("/budget", g.handleBudget())
		r.Post("/transform", g.handleTransform())
		r.Get("/capabilities", g.handleCapabilities())
		r.Post("/prepare", g.handlePrepare())
		r.Post("/complete", g.handleComplete())
	})

	// Admin endpoints, not mounted if no auth is configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.deps.Audit, g.limiter))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Post("/overrides/reload", g.handleReloadOverrides())
				r.Post("/jobs/{name}/run", g.handleRunJob())
			})
		})
	}

	return r
}
