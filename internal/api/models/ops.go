package models

import "github.com/breatheroute/aircheck/internal/provider/resilience"

// HealthStatus is the coarse state reported by ops endpoints.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health is the liveness body.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus aggregates provider circuits and the station cache.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Providers []ProviderStatus `json:"providers"`
	Cache     CacheStatus      `json:"cache"`
}

type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// NewProviderStatus converts a registry snapshot. The last error, if any,
// becomes the message.
func NewProviderStatus(h *resilience.ProviderHealth) ProviderStatus {
	ps := ProviderStatus{
		Provider:      h.Name,
		Status:        HealthStatus(h.Status),
		CircuitState:  h.Circuit,
		LastSuccessAt: TimestampPtr(h.LastSuccessAt),
		LastFailureAt: TimestampPtr(h.LastFailureAt),
	}
	if h.LastError != "" {
		msg := h.LastError
		ps.Message = &msg
	}
	return ps
}

// NewProviderStatuses converts every snapshot, keeping order.
func NewProviderStatuses(all []*resilience.ProviderHealth) []ProviderStatus {
	out := make([]ProviderStatus, 0, len(all))
	for _, h := range all {
		out = append(out, NewProviderStatus(h))
	}
	return out
}

// CacheStatus describes the station cache.
type CacheStatus struct {
	Entries int      `json:"entries"`
	Cities  []string `json:"cities"`
}
