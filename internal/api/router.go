// Package api provides the HTTP API for aircheck.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aircheck/internal/airquality"
	"github.com/breatheroute/aircheck/internal/api/handler"
	"github.com/breatheroute/aircheck/internal/api/middleware"
	"github.com/breatheroute/aircheck/internal/api/models"
	"github.com/breatheroute/aircheck/internal/api/response"
	"github.com/breatheroute/aircheck/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// AirQualityService answers city checks.
	AirQualityService *airquality.Service

	// Registry exposes provider circuit state on /v1/ops. Optional.
	Registry *resilience.Registry

	// HSTS enables Strict-Transport-Security.
	HSTS bool

	// RateLimit for air quality lookups (default: StandardRateLimit).
	RateLimit *middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aircheck-api"
	}

	rateLimit := middleware.StandardRateLimit
	if cfg.RateLimit != nil {
		rateLimit = *cfg.RateLimit
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders(cfg.HSTS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewMethodNotAllowed(middleware.GetRequestID(r.Context()), r.Method+" is not supported"))
	})

	var cache handler.CacheStatsProvider
	if cfg.AirQualityService != nil {
		cache = cfg.AirQualityService
	}
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cache)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		if cfg.AirQualityService != nil {
			aqHandler := handler.NewAirQualityHandler(cfg.AirQualityService)

			r.Route("/air-quality", func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(rateLimit))
				r.Get("/levels", aqHandler.ListLevels)
				r.Get("/{city}", aqHandler.GetCityAirQuality)
			})
		}
	})

	return r
}
