// Package main provides the entrypoint for the aircheck cache-warming worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aircheck/internal/app"
	"github.com/breatheroute/aircheck/internal/config"
	"github.com/breatheroute/aircheck/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	build := app.Build{Service: "aircheck-worker", Version: Version, BuildTime: BuildTime}

	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := app.NewLogger(os.Stdout, cfg.LogLevel, build)

	if err := run(cfg, log, build); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}

func run(cfg *config.Config, log zerolog.Logger, build app.Build) error {
	log.Info().Str("build_time", build.BuildTime).Msg("starting aircheck worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg, log, build)
	if err != nil {
		return err
	}
	defer rt.Close()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Cities:      cfg.WarmCities,
			Concurrency: cfg.RefreshConcurrency,
		},
		Logger:    log,
		Refresher: rt.Service,
	})

	scheduler := worker.NewScheduler(job, cfg.RefreshInterval, log)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	// Pub/Sub intake is optional; scheduled warming runs either way.
	if cfg.PubSubProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: worker.NewHealthRouter(worker.HealthConfig{
			Version:   build.Version,
			Job:       job,
			Scheduler: scheduler,
			Registry:  rt.Registry,
			Logger:    log,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
