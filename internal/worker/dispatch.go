package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Job types carried in RefreshMessage.JobType.
const (
	JobRefreshCity = "refresh_city"
	JobRefreshAll  = "refresh_all"
	JobHealthCheck = "health_check"
)

var (
	// ErrInvalidMessage marks a message that can never succeed.
	ErrInvalidMessage = errors.New("invalid refresh message")

	// ErrUnknownJob marks a message naming a job this worker does not run.
	ErrUnknownJob = errors.New("unknown job type")
)

// RefreshMessage is the JSON body of a refresh job.
type RefreshMessage struct {
	JobType string `json:"job_type"`
	City    string `json:"city,omitempty"`
}

type jobFunc func(ctx context.Context, msg RefreshMessage) error

// Dispatcher runs the job a RefreshMessage names against a RefreshJob.
type Dispatcher struct {
	job    *RefreshJob
	logger zerolog.Logger
	jobs   map[string]jobFunc
}

// NewDispatcher creates a Dispatcher that runs jobs against job.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{job: job, logger: logger}
	d.jobs = map[string]jobFunc{
		JobRefreshCity: d.refreshCity,
		JobRefreshAll:  d.refreshAll,
		JobHealthCheck: d.healthCheck,
	}
	return d
}

// Dispatch decodes data and runs its job. Errors wrapping ErrInvalidMessage
// or ErrUnknownJob will fail again on redelivery.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	run, ok := d.jobs[msg.JobType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
	return run(ctx, msg)
}

func (d *Dispatcher) refreshCity(ctx context.Context, msg RefreshMessage) error {
	if msg.City == "" {
		return fmt.Errorf("%w: %s requires a city", ErrInvalidMessage, JobRefreshCity)
	}
	_, err := d.job.RefreshCity(ctx, msg.City)
	return err
}

// refreshAll fails only when failures outnumber refreshed and empty cities together.
func (d *Dispatcher) refreshAll(ctx context.Context, _ RefreshMessage) error {
	result := d.job.Run(ctx)
	if result.Failed > result.Successful+result.Empty {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalCities)
	}
	return nil
}

// healthCheck probes the provider through one city, by default the first warm city.
func (d *Dispatcher) healthCheck(ctx context.Context, msg RefreshMessage) error {
	city := msg.City
	if city == "" {
		cities := d.job.Cities()
		if len(cities) == 0 {
			return fmt.Errorf("%w: no city to check", ErrInvalidMessage)
		}
		city = cities[0]
	}

	d.logger.Debug().Str("city", city).Msg("running health check")
	if _, err := d.job.RefreshCity(ctx, city); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// ShouldAck reports whether a message should be acked after dispatch.
// Poison messages are acked and logged so they stop being redelivered.
// Job failures are nacked for a retry.
func ShouldAck(err error, logger zerolog.Logger) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrUnknownJob):
		logger.Warn().Err(err).Msg("dropping message")
		return true
	default:
		logger.Error().Err(err).Msg("job failed")
		return false
	}
}
