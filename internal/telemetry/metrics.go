package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/breatheroute/aircheck/internal/airquality"
)

// CheckMetrics counts air quality checks by outcome and records classified indexes.
// It satisfies airquality.CheckRecorder.
type CheckMetrics struct {
	checks metric.Int64Counter
	index  metric.Float64Histogram
}

// NewCheckMetrics creates check instruments on meter.
func NewCheckMetrics(meter metric.Meter) (*CheckMetrics, error) {
	checks, err := meter.Int64Counter(
		"aircheck.check.total",
		metric.WithDescription("Number of air quality checks by outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	index, err := meter.Float64Histogram(
		"aircheck.check.index",
		metric.WithDescription("Aggregated PM2.5 index of classified checks"),
		metric.WithUnit("ug/m3"),
		metric.WithExplicitBucketBoundaries(0, 51, 101, 151, 201, 301, 500),
	)
	if err != nil {
		return nil, err
	}

	return &CheckMetrics{checks: checks, index: index}, nil
}

// RecordCheck records one check. level and index are only set for classified checks.
func (m *CheckMetrics) RecordCheck(ctx context.Context, outcome, level string, index float64) {
	attrs := []attribute.KeyValue{attribute.String("aq.outcome", outcome)}
	if level != "" {
		attrs = append(attrs, attribute.String("aq.level", level))
		m.index.Record(ctx, index, metric.WithAttributes(attribute.String("aq.level", level)))
	}
	m.checks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ProviderMetrics times provider fetches and counts station cache lookups.
// It satisfies airquality.CacheObserver.
type ProviderMetrics struct {
	fetchDuration metric.Float64Histogram
	cacheLookups  metric.Int64Counter
}

// NewProviderMetrics creates provider and cache instruments on meter.
func NewProviderMetrics(meter metric.Meter) (*ProviderMetrics, error) {
	fetchDuration, err := meter.Float64Histogram(
		"aircheck.provider.fetch.duration",
		metric.WithDescription("Duration of provider fetches per city, including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"aircheck.cache.lookups",
		metric.WithDescription("Station cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{fetchDuration: fetchDuration, cacheLookups: cacheLookups}, nil
}

// Fetcher wraps f so each fetch is timed under provider. The histogram count doubles as a fetch counter.
func (m *ProviderMetrics) Fetcher(provider string, f airquality.Fetcher) airquality.Fetcher {
	return airquality.FetchFunc(func(ctx context.Context, city string) ([]airquality.RawRecord, error) {
		start := time.Now()
		records, err := f.Fetch(ctx, city)

		result := "ok"
		if err != nil {
			result = "error"
		}
		// The request context may already be cancelled
		m.fetchDuration.Record(context.Background(), time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("provider.name", provider),
			attribute.String("fetch.result", result),
		))
		return records, err
	})
}

// RecordCacheHit records a cache hit.
func (m *ProviderMetrics) RecordCacheHit(cache, operation string) {
	m.recordLookup(cache, operation, "hit")
}

// RecordCacheMiss records a cache miss.
func (m *ProviderMetrics) RecordCacheMiss(cache, operation string) {
	m.recordLookup(cache, operation, "miss")
}

func (m *ProviderMetrics) recordLookup(cache, operation, result string) {
	m.cacheLookups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cache.name", cache),
		attribute.String("cache.operation", operation),
		attribute.String("cache.result", result),
	))
}
