package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aircheck/internal/api/models"
	"github.com/breatheroute/aircheck/internal/provider/resilience"
	"github.com/breatheroute/aircheck/internal/worker"
)

func getHealth(t *testing.T, h http.Handler) (int, models.Health) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	var body models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthRouter_Running(t *testing.T) {
	job := newJob(&fakeRefresher{}, worker.RefreshConfig{Cities: []string{"Amsterdam"}, Timeout: time.Second})
	s := worker.NewScheduler(job, time.Hour, zerolog.Nop())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	registry := resilience.NewRegistry()
	_ = resilience.NewClient(resilience.ClientConfig{Name: "openaq", Registry: registry})

	code, body := getHealth(t, worker.NewHealthRouter(worker.HealthConfig{
		Version:   "1.2.3",
		Job:       job,
		Scheduler: s,
		Registry:  registry,
		Logger:    zerolog.Nop(),
	}))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Equal(t, "1.2.3", body.Details["version"])
	assert.Equal(t, true, body.Details["scheduler_running"])
	assert.Contains(t, body.Details, "total_runs")

	providers, ok := body.Details["providers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, providers, 1)
}

func TestHealthRouter_SchedulerStopped(t *testing.T) {
	job := newJob(&fakeRefresher{}, worker.RefreshConfig{Cities: []string{"Amsterdam"}})
	s := worker.NewScheduler(job, time.Hour, zerolog.Nop())

	code, body := getHealth(t, worker.NewHealthRouter(worker.HealthConfig{
		Job:       job,
		Scheduler: s,
		Logger:    zerolog.Nop(),
	}))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, models.HealthStatusFail, body.Status)
	assert.NotContains(t, body.Details, "providers")
}

func TestHealthRouter_UnknownPath(t *testing.T) {
	job := newJob(&fakeRefresher{}, worker.RefreshConfig{Cities: []string{"Amsterdam"}})
	h := worker.NewHealthRouter(worker.HealthConfig{Job: job, Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
