package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/kviz-leads/internal/infra/http/handlers"
	"github.com/xavierca1/kviz-leads/internal/infra/http/middleware"
)

type routerDeps struct {
	Lead           *handlers.LeadHandler
	Event          *handlers.EventHandler
	Health         *handlers.HealthHandler
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
}

// newRouter mounts the API under both /api and /api/analytics; the frontend
// has used both prefixes.
func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.WithClientInfo)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	diag := handlers.NewDiagnosticsHandler(r)

	r.Get("/", diag.Index)
	r.Get("/health", d.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	api := func(r chi.Router) {
		r.Post("/lead", d.Lead.Handle)
		r.Get("/lead", diag.LeadRequiresPost)
		r.Post("/event", d.Event.Handle)
		r.Get("/event", diag.EventRequiresPost)
		r.Get("/health", d.Health.HandleService)
		r.Post("/test", diag.Echo)
	}

	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}
		r.Route("/api/analytics", api)
		r.Route("/api", func(r chi.Router) {
			api(r)
			r.Get("/routes", diag.Routes)
		})
	})

	return r
}
