// Package main provides the entrypoint for the aircheck API server.
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

	"github.com/breatheroute/aircheck/internal/api"
	"github.com/breatheroute/aircheck/internal/api/middleware"
	"github.com/breatheroute/aircheck/internal/app"
	"github.com/breatheroute/aircheck/internal/config"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	build := app.Build{Service: "aircheck-api", Version: Version, BuildTime: BuildTime}

	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := app.NewLogger(os.Stdout, cfg.LogLevel, build)

	if err := run(cfg, log, build); err != nil {
		log.Fatal().Err(err).Msg("api server failed")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger, build app.Build) error {
	log.Info().
		Str("build_time", build.BuildTime).
		Str("env", cfg.Env).
		Msg("starting aircheck API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg, log, build)
	if err != nil {
		return err
	}
	defer rt.Close()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.RouterConfig{
			Version:           build.Version,
			BuildTime:         build.BuildTime,
			Logger:            log,
			ServiceName:       build.Service,
			Metrics:           metrics,
			AirQualityService: rt.Service,
			Registry:          rt.Registry,
			HSTS:              cfg.IsProduction(),
			RateLimit: &middleware.RateLimitConfig{
				RequestLimit: cfg.RateLimitRequests,
				WindowLength: cfg.RateLimitWindow,
			},
		}),
		ReadTimeout: 15 * time.Second,
		// A lookup may retry the provider before answering.
		WriteTimeout: 2*cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
