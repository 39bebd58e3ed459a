package airquality

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/breatheroute/aircheck/internal/airquality"

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Fetcher retrieves raw station records from the provider.
	Fetcher Fetcher

	// Cache holds station lists per city. If nil, a new cache is created.
	Cache *ResultCache

	// Thresholds used for classification (default: DefaultThresholds).
	Thresholds ThresholdTable

	// Aggregation strategy (default: AggregationMean).
	Aggregation Aggregation

	// Logger for service operations.
	Logger zerolog.Logger

	// Tracer for check spans (default: global otel tracer).
	Tracer trace.Tracer

	// Recorder receives one outcome per check. Optional.
	Recorder CheckRecorder
}

// Check outcomes reported to a CheckRecorder.
const (
	OutcomeClassified  = "classified"
	OutcomeNoStations  = "no_stations"
	OutcomeNoPM25      = "no_pm25"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeInvalid     = "invalid"
)

// CheckRecorder records check outcomes. index is only meaningful for OutcomeClassified.
type CheckRecorder interface {
	RecordCheck(ctx context.Context, outcome, level string, index float64)
}

// Service runs city air quality checks.
type Service struct {
	fetcher     Fetcher
	cache       *ResultCache
	thresholds  ThresholdTable
	aggregation Aggregation
	logger      zerolog.Logger
	tracer      trace.Tracer
	recorder    CheckRecorder
	now         func() time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	cache := cfg.Cache
	if cache == nil {
		cache = NewResultCache()
	}

	thresholds := cfg.Thresholds
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds()
	}

	aggregation := cfg.Aggregation
	if aggregation == "" {
		aggregation = AggregationMean
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Service{
		fetcher:     cfg.Fetcher,
		cache:       cache,
		thresholds:  thresholds,
		aggregation: aggregation,
		logger:      cfg.Logger,
		tracer:      tracer,
		recorder:    cfg.Recorder,
		now:         time.Now,
	}
}

// Thresholds returns the classification table in use.
func (s *Service) Thresholds() ThresholdTable {
	return s.thresholds
}

// Aggregation returns the aggregation strategy in use.
func (s *Service) Aggregation() Aggregation {
	return s.aggregation
}

// Check returns the air quality report for city.
//
// A city without stations yields a report with a nil Level and no error.
// Fetch failures match ErrFetch; stations without PM2.5 data yield ErrEmptyInput.
func (s *Service) Check(ctx context.Context, city string) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "airquality.Check",
		trace.WithAttributes(attribute.String("aq.city", city)),
	)
	defer span.End()

	stations, err := s.cache.GetOrFetch(ctx, city, s.fetcher)
	if err != nil {
		s.logger.Error().Err(err).Str("city", city).Msg("failed to fetch stations")
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.record(ctx, OutcomeFetchFailed, "", 0)
		return nil, err
	}

	return s.evaluate(ctx, span, city, stations)
}

// Refresh refetches city, replacing its cached stations, and returns the new report.
func (s *Service) Refresh(ctx context.Context, city string) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "airquality.Refresh",
		trace.WithAttributes(attribute.String("aq.city", city)),
	)
	defer span.End()

	stations, err := s.cache.Refresh(ctx, city, s.fetcher)
	if err != nil {
		s.logger.Error().Err(err).Str("city", city).Msg("failed to refresh stations")
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		s.record(ctx, OutcomeFetchFailed, "", 0)
		return nil, err
	}

	s.logger.Debug().
		Str("city", city).
		Int("stations", len(stations)).
		Msg("air quality stations refreshed")

	return s.evaluate(ctx, span, city, stations)
}

func (s *Service) evaluate(ctx context.Context, span trace.Span, city string, stations []Station) (*Report, error) {
	report := &Report{
		City:      city,
		Stations:  stations,
		CheckedAt: s.now(),
	}
	span.SetAttributes(attribute.Int("aq.stations", len(stations)))

	if !report.HasStations() {
		s.logger.Info().Str("city", city).Msg("no stations found")
		s.record(ctx, OutcomeNoStations, "", 0)
		return report, nil
	}

	index, err := s.aggregation.Apply(stations)
	if err != nil {
		s.logger.Warn().
			Str("city", city).
			Int("stations", len(stations)).
			Msg("no PM2.5 data among stations")
		span.SetStatus(codes.Error, "no PM2.5 data")
		s.record(ctx, OutcomeNoPM25, "", 0)
		return nil, err
	}

	tier, err := s.thresholds.Classify(index)
	if err != nil {
		// Only a negative index or broken table gets here
		s.logger.Error().
			Err(err).
			Str("city", city).
			Float64("index", index).
			Msg("classification invariant violated")
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		s.record(ctx, OutcomeInvalid, "", index)
		return nil, err
	}

	report.Level = &tier
	report.Recommendation = Advise(tier)

	span.SetAttributes(
		attribute.Float64("aq.index", index),
		attribute.String("aq.level", tier.Name),
	)

	s.logger.Info().
		Str("city", city).
		Int("stations", len(stations)).
		Float64("index", index).
		Str("level", tier.Name).
		Msg("air quality classified")
	s.record(ctx, OutcomeClassified, tier.Name, index)

	return report, nil
}

func (s *Service) record(ctx context.Context, outcome, level string, index float64) {
	if s.recorder != nil {
		s.recorder.RecordCheck(ctx, outcome, level, index)
	}
}

// CacheStats describes the result cache.
type CacheStats struct {
	Entries int
	Cities  []string
}

// CacheStats returns information about the current cache state.
func (s *Service) CacheStats() CacheStats {
	return CacheStats{
		Entries: s.cache.Len(),
		Cities:  s.cache.Cities(),
	}
}

// IsProviderUnavailable reports whether err came from a provider refusing requests.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
