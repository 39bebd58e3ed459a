package worker

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aircheck/internal/api/middleware"
	"github.com/breatheroute/aircheck/internal/api/models"
	"github.com/breatheroute/aircheck/internal/api/response"
	"github.com/breatheroute/aircheck/internal/provider/resilience"
)

// HealthConfig holds what the worker health endpoint reports on.
type HealthConfig struct {
	Version   string
	Job       *RefreshJob
	Scheduler *Scheduler
	Registry  *resilience.Registry // optional
	Logger    zerolog.Logger
}

// NewHealthRouter serves GET /health for the container platform.
//
// A stopped scheduler is FAIL with 503. An open provider circuit is DEGRADED
// but still 200, since warming resumes by itself once the breaker closes.
func NewHealthRouter(cfg HealthConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		details := cfg.Job.MetricsSnapshot()
		details["version"] = cfg.Version

		running := cfg.Scheduler != nil && cfg.Scheduler.IsRunning()
		details["scheduler_running"] = running

		status := models.HealthStatusOK
		if cfg.Registry != nil {
			providers := models.NewProviderStatuses(cfg.Registry.All())
			details["providers"] = providers
			for _, p := range providers {
				if p.Status != models.HealthStatusOK {
					status = models.HealthStatusDegraded
				}
			}
		}

		code := http.StatusOK
		if !running {
			status = models.HealthStatusFail
			code = http.StatusServiceUnavailable
		}

		response.JSON(w, r, code, models.Health{
			Status:  status,
			Time:    models.Timestamp(time.Now()),
			Details: details,
		})
	})

	return r
}
