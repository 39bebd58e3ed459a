package worker

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// ErrInvalidInterval is returned by Start when the refresh interval is not positive.
var ErrInvalidInterval = errors.New("refresh interval must be positive")

// Scheduler runs a RefreshJob on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *RefreshJob
	interval  time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a Scheduler for job.
func NewScheduler(job *RefreshJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job and starts the scheduler. The first run starts immediately.
// Runs never overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return ErrInvalidInterval
	}
	if len(s.job.Cities()) == 0 {
		s.logger.Warn().Msg("no cities configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.job.Run(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Dur("interval", s.interval).
		Int("cities", len(s.job.Cities())).
		Msg("refresh scheduler started")

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// IsRunning reports whether the scheduler has been started and not stopped.
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}
