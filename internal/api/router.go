// Package api provides the HTTP API for the weekendfare service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/weekendfare/weekendfare/internal/api/handler"
	"github.com/weekendfare/weekendfare/internal/api/middleware"
	"github.com/weekendfare/weekendfare/internal/provider/resilience"
	"github.com/weekendfare/weekendfare/internal/search"
	"github.com/weekendfare/weekendfare/internal/searchstore"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	Metrics        *middleware.Metrics
	SearchService  *search.Service
	SearchStore    *searchstore.Store
	Registry       *resilience.Registry
	AllowedOrigins []string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ContentTypeJSON)
	r.Use(corsHandler(cfg.AllowedOrigins))

	searchHandler := handler.NewSearchHandler(cfg.SearchService, cfg.SearchStore)
	airportsHandler := handler.NewAirportsHandler()
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)

	searchRateLimit := middleware.RateLimitByIP(middleware.SearchRateLimit)     // 6 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 60 req/min

	r.Route("/v1", func(r chi.Router) {
		// Search endpoints - creation fans out to the fare provider, so it
		// gets the strict limit
		r.Route("/searches", func(r chi.Router) {
			r.With(searchRateLimit).Post("/", searchHandler.CreateSearch)
			r.With(standardRateLimit).Get("/{searchId}", searchHandler.GetSearch)
			r.With(standardRateLimit).Get("/{searchId}/results/{rank}", searchHandler.GetResult)
		})

		// Airport directory (public)
		r.Route("/airports", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", airportsHandler.ListAirports)
			r.Get("/{code}", airportsHandler.GetAirport)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})
	})

	return r
}

func corsHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}).Handler
}
