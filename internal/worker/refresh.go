package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aircheck/internal/airquality"
)

// Refresher refetches a city and reclassifies it. Implemented by *airquality.Service.
type Refresher interface {
	Refresh(ctx context.Context, city string) (*airquality.Report, error)
}

// RefreshJob refreshes the cached stations of every configured city.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	refresher Refresher

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics across runs.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns  int64
	Successful int64
	Failed     int64
	Empty      int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Logger    zerolog.Logger
	Refresher Refresher
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:    cfg.Config.withDefaults(),
		logger:    cfg.Logger,
		refresher: cfg.Refresher,
		metrics:   &RefreshMetrics{},
	}
}

// Cities returns the cities this job refreshes.
func (j *RefreshJob) Cities() []string {
	return j.config.Cities
}

// CityOutcome is the result of refreshing one city.
type CityOutcome string

const (
	// CityRefreshed means stations were fetched and classified.
	CityRefreshed CityOutcome = "refreshed"

	// CityEmpty means the fetch succeeded but there was nothing to classify.
	CityEmpty CityOutcome = "empty"

	// CityFailed means the fetch failed or the city was skipped.
	CityFailed CityOutcome = "failed"
)

// RefreshResult contains the result of a refresh run.
// Successful + Failed + Empty always equals TotalCities.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalCities int
	Successful  int
	Failed      int
	Empty       int
	Errors      []RefreshError
}

// RefreshError represents a failed city refresh.
type RefreshError struct {
	City  string
	Error string
}

// Run refreshes all configured cities and returns the summary.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime:   startTime,
		TotalCities: j.config.TotalCities(),
	}

	j.logger.Info().
		Int("total_cities", result.TotalCities).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache refresh job")

	citiesChan := make(chan string, len(j.config.Cities))
	resultsChan := make(chan cityResult, len(j.config.Cities))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, citiesChan, resultsChan)
		}()
	}

	for _, city := range j.config.Cities {
		citiesChan <- city
	}
	close(citiesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for cr := range resultsChan {
		switch cr.outcome {
		case CityRefreshed:
			result.Successful++
		case CityEmpty:
			result.Empty++
		default:
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{City: cr.city, Error: cr.err.Error()})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("empty", result.Empty).
		Int("failed", result.Failed).
		Msg("cache refresh job completed")

	return result
}

type cityResult struct {
	city    string
	outcome CityOutcome
	err     error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, cities <-chan string, results chan<- cityResult) {
	for city := range cities {
		// Drain remaining cities as skipped so every city is accounted for
		if err := ctx.Err(); err != nil {
			results <- cityResult{city: city, outcome: CityFailed, err: err}
			continue
		}
		outcome, err := j.RefreshCity(ctx, city)
		results <- cityResult{city: city, outcome: outcome, err: err}
	}
}

// RefreshCity refreshes a single city within the per-city timeout.
// A city without stations or without PM2.5 data is CityEmpty with a nil error.
func (j *RefreshJob) RefreshCity(ctx context.Context, city string) (CityOutcome, error) {
	if j.refresher == nil {
		return CityFailed, errors.New("no refresher configured")
	}

	cityCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	report, err := j.refresher.Refresh(cityCtx, city)
	switch {
	case errors.Is(err, airquality.ErrEmptyInput):
		return CityEmpty, nil
	case err != nil:
		j.logger.Warn().Err(err).Str("city", city).Msg("city refresh failed")
		return CityFailed, err
	case report.Level == nil:
		return CityEmpty, nil
	}

	j.logger.Debug().
		Str("city", city).
		Str("level", report.Level.Name).
		Msg("city refreshed")
	return CityRefreshed, nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Successful += int64(result.Successful)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.Empty += int64(result.Empty)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		Successful:      j.metrics.Successful,
		Failed:          j.metrics.Failed,
		Empty:           j.metrics.Empty,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful":        m.Successful,
		"failed":            m.Failed,
		"empty":             m.Empty,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
