// Package handler provides HTTP handlers for the aircheck API.
package handler

import (
	"net/http"
	"time"

	"github.com/breatheroute/aircheck/internal/airquality"
	"github.com/breatheroute/aircheck/internal/api/models"
	"github.com/breatheroute/aircheck/internal/api/response"
	"github.com/breatheroute/aircheck/internal/provider/resilience"
)

// CacheStatsProvider reports station cache occupancy.
type CacheStatsProvider interface {
	CacheStats() airquality.CacheStats
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	cache     CacheStatsProvider
}

// NewOpsHandler creates a new OpsHandler. registry and cache may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, cache CacheStatsProvider) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		cache:     cache,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready.
// The service is not ready while every registered provider has an open circuit.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()

	status := models.HealthStatusOK
	if len(providers) > 0 {
		status = models.HealthStatusFail
		for _, p := range providers {
			if p.Status != models.HealthStatusFail {
				status = models.HealthStatusOK
				break
			}
		}
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}

	response.JSON(w, r, code, models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - provider and cache status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()

	status := models.HealthStatusOK
	for _, p := range providers {
		if p.Status != models.HealthStatusOK {
			status = models.HealthStatusDegraded
			break
		}
	}

	cache := models.CacheStatus{Cities: []string{}}
	if h.cache != nil {
		stats := h.cache.CacheStats()
		cache.Entries = stats.Entries
		if stats.Cities != nil {
			cache.Cities = stats.Cities
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:    status,
		Time:      models.Timestamp(time.Now()),
		Providers: providers,
		Cache:     cache,
	})
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}
	return models.NewProviderStatuses(h.registry.All())
}
