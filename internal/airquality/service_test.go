package airquality_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/breatheroute/aircheck/internal/airquality"
)

func newTestService(fetcher airquality.Fetcher) *airquality.Service {
	return airquality.NewService(airquality.ServiceConfig{
		Fetcher: fetcher,
		Logger:  zerolog.New(io.Discard),
	})
}

func TestService_Check_Good(t *testing.T) {
	fetcher := &mockFetcher{records: testRecords()}
	svc := newTestService(fetcher)

	report, err := svc.Check(context.Background(), "Delhi")
	require.NoError(t, err)

	assert.Equal(t, "Delhi", report.City)
	assert.True(t, report.HasStations())
	assert.Equal(t, 3, report.StationsWithPM25())
	require.NotNil(t, report.Level)
	assert.Equal(t, "Good", report.Level.Name)
	assert.Equal(t, 50.0, report.Level.AQI)
	assert.False(t, report.Level.Mask)
	assert.False(t, report.Level.Indoors)
	assert.Equal(t, airquality.AdviceGoOutside, report.Recommendation)
	assert.False(t, report.CheckedAt.IsZero())
}

func TestService_Check_UsesCache(t *testing.T) {
	fetcher := &mockFetcher{records: testRecords()}
	svc := newTestService(fetcher)
	ctx := context.Background()

	_, err := svc.Check(ctx, "Delhi")
	require.NoError(t, err)
	_, err = svc.Check(ctx, "Delhi")
	require.NoError(t, err)

	assert.Equal(t, int32(1), fetcher.fetchCount.Load())
	stats := svc.CacheStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, []string{"Delhi"}, stats.Cities)
}

func TestService_Check_NoStations(t *testing.T) {
	fetcher := &mockFetcher{records: []airquality.RawRecord{}}
	svc := newTestService(fetcher)

	report, err := svc.Check(context.Background(), "Atlantis")
	require.NoError(t, err)

	assert.False(t, report.HasStations())
	assert.Nil(t, report.Level)
	assert.Empty(t, report.Recommendation)

	// Empty result is cached
	_, err = svc.Check(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.fetchCount.Load())
}

func TestService_Check_NoPM25Data(t *testing.T) {
	fetcher := &mockFetcher{records: []airquality.RawRecord{
		{Location: "o3-only", Measurements: []airquality.RawMeasurement{{Parameter: "o3", Value: airquality.Float(80)}}},
	}}
	svc := newTestService(fetcher)

	report, err := svc.Check(context.Background(), "Ozoneville")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, airquality.ErrEmptyInput)
	assert.NotErrorIs(t, err, airquality.ErrFetch)
}

func TestService_Check_FetchError(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("dns failure")}
	svc := newTestService(fetcher)

	report, err := svc.Check(context.Background(), "Delhi")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, airquality.ErrFetch)
	assert.NotErrorIs(t, err, airquality.ErrEmptyInput)
	assert.False(t, airquality.IsProviderUnavailable(err))
	assert.Equal(t, 0, svc.CacheStats().Entries)
}

func TestService_Check_ProviderUnavailable(t *testing.T) {
	fetcher := &mockFetcher{err: airquality.ErrProviderUnavailable}
	svc := newTestService(fetcher)

	_, err := svc.Check(context.Background(), "Delhi")
	assert.ErrorIs(t, err, airquality.ErrFetch)
	assert.True(t, airquality.IsProviderUnavailable(err))
}

func TestService_Check_Levels(t *testing.T) {
	tests := []struct {
		value  float64
		level  string
		advice string
	}{
		{180, "Unhealthy", airquality.AdviceWearMask},
		{800, "Hazardous", airquality.AdviceStayIndoors},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			fetcher := &mockFetcher{records: []airquality.RawRecord{
				{Location: "s", Measurements: []airquality.RawMeasurement{{Parameter: "pm25", Value: airquality.Float(tt.value)}}},
			}}
			svc := newTestService(fetcher)

			report, err := svc.Check(context.Background(), "City")
			require.NoError(t, err)
			require.NotNil(t, report.Level)
			assert.Equal(t, tt.level, report.Level.Name)
			assert.Equal(t, tt.advice, report.Recommendation)
		})
	}
}

func TestService_Check_MedianAggregation(t *testing.T) {
	svc := airquality.NewService(airquality.ServiceConfig{
		Fetcher:     &mockFetcher{records: testRecords()},
		Aggregation: airquality.AggregationMedian,
		Logger:      zerolog.New(io.Discard),
	})

	report, err := svc.Check(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.Equal(t, 30.0, report.Level.AQI)
}

func TestService_Check_NegativeIndex(t *testing.T) {
	var buf bytes.Buffer
	svc := airquality.NewService(airquality.ServiceConfig{
		Fetcher: &mockFetcher{records: []airquality.RawRecord{
			{Location: "broken", Measurements: []airquality.RawMeasurement{{Parameter: "pm25", Value: airquality.Float(-5)}}},
		}},
		Logger: zerolog.New(&buf),
	})

	_, err := svc.Check(context.Background(), "Glitch")
	assert.ErrorIs(t, err, airquality.ErrOutOfRange)
	assert.Contains(t, buf.String(), "classification invariant violated")
}

func TestService_Check_CustomThresholds(t *testing.T) {
	table, err := airquality.NewThresholdTable([]airquality.Threshold{
		{Below: 25, Name: "Low"},
		{Below: airquality.DefaultThresholds()[5].Below, Name: "High", Mask: true},
	})
	require.NoError(t, err)

	svc := airquality.NewService(airquality.ServiceConfig{
		Fetcher:    &mockFetcher{records: testRecords()},
		Thresholds: table,
		Logger:     zerolog.New(io.Discard),
	})

	report, err := svc.Check(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.Equal(t, "High", report.Level.Name)
	assert.Equal(t, airquality.AdviceWearMask, report.Recommendation)
	assert.Equal(t, table, svc.Thresholds())
}

func TestService_Refresh(t *testing.T) {
	fetcher := &mockFetcher{records: testRecords()}
	svc := newTestService(fetcher)
	ctx := context.Background()

	_, err := svc.Check(ctx, "Delhi")
	require.NoError(t, err)

	fetcher.records = []airquality.RawRecord{
		{Location: "s1", Measurements: []airquality.RawMeasurement{{Parameter: "pm25", Value: airquality.Float(250)}}},
	}
	report, err := svc.Refresh(ctx, "Delhi")
	require.NoError(t, err)
	assert.Equal(t, "Very Unhealthy", report.Level.Name)

	// Subsequent check sees refreshed data without fetching
	report, err = svc.Check(ctx, "Delhi")
	require.NoError(t, err)
	assert.Equal(t, "Very Unhealthy", report.Level.Name)
	assert.Equal(t, int32(2), fetcher.fetchCount.Load())
}

func TestService_Check_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	svc := airquality.NewService(airquality.ServiceConfig{
		Fetcher: &mockFetcher{records: testRecords()},
		Logger:  zerolog.New(io.Discard),
		Tracer:  tp.Tracer("test"),
	})

	_, err := svc.Check(context.Background(), "Delhi")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "airquality.Check", spans[0].Name())

	attrs := make(map[string]interface{})
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "Delhi", attrs["aq.city"])
	assert.Equal(t, "Good", attrs["aq.level"])
	assert.Equal(t, int64(3), attrs["aq.stations"])
}

type recordedCheck struct {
	outcome string
	level   string
	index   float64
}

type fakeRecorder struct {
	checks []recordedCheck
}

func (r *fakeRecorder) RecordCheck(_ context.Context, outcome, level string, index float64) {
	r.checks = append(r.checks, recordedCheck{outcome: outcome, level: level, index: index})
}

func TestService_Check_RecordsOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *mockFetcher
		want    recordedCheck
	}{
		{
			name:    "classified",
			fetcher: &mockFetcher{records: testRecords()},
			want:    recordedCheck{outcome: airquality.OutcomeClassified, level: "Good", index: 50},
		},
		{
			name:    "no stations",
			fetcher: &mockFetcher{records: []airquality.RawRecord{}},
			want:    recordedCheck{outcome: airquality.OutcomeNoStations},
		},
		{
			name: "no pm25",
			fetcher: &mockFetcher{records: []airquality.RawRecord{
				{Location: "o3-only", Measurements: []airquality.RawMeasurement{{Parameter: "o3", Value: airquality.Float(1)}}},
			}},
			want: recordedCheck{outcome: airquality.OutcomeNoPM25},
		},
		{
			name:    "fetch failed",
			fetcher: &mockFetcher{err: errors.New("timeout")},
			want:    recordedCheck{outcome: airquality.OutcomeFetchFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			svc := airquality.NewService(airquality.ServiceConfig{
				Fetcher:  tt.fetcher,
				Logger:   zerolog.New(io.Discard),
				Recorder: rec,
			})

			_, _ = svc.Check(context.Background(), "City")

			require.Len(t, rec.checks, 1)
			assert.Equal(t, tt.want, rec.checks[0])
		})
	}
}
