// Package app wires the pieces shared by the aircheck API and worker
// processes: logging, telemetry and the OpenAQ-backed air quality service.
package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/breatheroute/aircheck/internal/airquality"
	"github.com/breatheroute/aircheck/internal/airquality/openaq"
	"github.com/breatheroute/aircheck/internal/config"
	"github.com/breatheroute/aircheck/internal/provider/resilience"
	"github.com/breatheroute/aircheck/internal/telemetry"
)

// Build identifies the running binary.
type Build struct {
	Service   string
	Version   string
	BuildTime string
}

// NewLogger returns the JSON process logger.
func NewLogger(w io.Writer, level zerolog.Level, b Build) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", b.Service).
		Str("version", b.Version).
		Logger()
}

// Runtime holds the long-lived dependencies of a process.
type Runtime struct {
	Config    *config.Config
	Log       zerolog.Logger
	Telemetry *telemetry.Provider
	Registry  *resilience.Registry
	Service   *airquality.Service
}

// New initializes telemetry and builds the air quality service on top of a
// resilient, traced OpenAQ client. Close must be called on the result.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, b Build) (*Runtime, error) {
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    b.Service,
		ServiceVersion: b.Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, err
	}
	if cfg.OTelEnabled {
		log.Info().Str("otlp_endpoint", cfg.OTelEndpoint).Msg("OpenTelemetry initialized")
	}

	rt := &Runtime{
		Config:    cfg,
		Log:       log,
		Telemetry: tp,
		Registry:  resilience.NewRegistry(),
	}
	if rt.Service, err = rt.newService(); err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	log.Info().
		Str("provider", openaq.ProviderName).
		Str("aggregation", string(cfg.Aggregation)).
		Msg("air quality service initialized")
	return rt, nil
}

func (rt *Runtime) newService() (*airquality.Service, error) {
	providerMetrics, err := telemetry.NewProviderMetrics(rt.Telemetry.Meter)
	if err != nil {
		return nil, err
	}
	checkMetrics, err := telemetry.NewCheckMetrics(rt.Telemetry.Meter)
	if err != nil {
		return nil, err
	}

	breaker := resilience.DefaultCircuitBreakerConfig(openaq.ProviderName)
	breaker.OnStateChange = resilience.LogStateChanges(rt.Log)

	client := openaq.NewClient(openaq.ClientConfig{
		BaseURL:   rt.Config.OpenAQBaseURL,
		PageLimit: rt.Config.OpenAQPageLimit,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:            openaq.ProviderName,
			Timeout:         rt.Config.ProviderTimeout,
			MaxRetries:      rt.Config.ProviderMaxRetries,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			CircuitBreaker:  &breaker,
			Registry:        rt.Registry,
			Transport:       otelhttp.NewTransport(http.DefaultTransport),
		}),
	})

	return airquality.NewService(airquality.ServiceConfig{
		Fetcher: providerMetrics.Fetcher(openaq.ProviderName, client),
		Cache: airquality.NewResultCache().
			WithObserver(providerMetrics).
			WithFetchTimeout(time.Duration(rt.Config.ProviderMaxRetries+1) * rt.Config.ProviderTimeout),
		Aggregation: rt.Config.Aggregation,
		Logger:      rt.Log,
		Tracer:      rt.Telemetry.Tracer,
		Recorder:    checkMetrics,
	}), nil
}

// Close flushes telemetry, giving up after five seconds.
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Telemetry.Shutdown(ctx); err != nil {
		rt.Log.Error().Err(err).Msg("failed to shutdown telemetry")
	}
}
