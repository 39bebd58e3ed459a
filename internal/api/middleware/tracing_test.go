package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/breatheroute/aircheck/internal/api/middleware"
)

// recordSpans installs a recording tracer provider and W3C propagator globally.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

// onlySpan serves req through h and returns the single ended span.
func onlySpan(t *testing.T, sr *tracetest.SpanRecorder, h http.Handler, req *http.Request) sdktrace.ReadOnlySpan {
	t.Helper()
	h.ServeHTTP(httptest.NewRecorder(), req)
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrOf(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

func TestTracing_ServerSpan(t *testing.T) {
	sr := recordSpans(t)

	var sawSpan bool
	h := middleware.Tracing("aircheck-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSpan = trace.SpanFromContext(r.Context()).SpanContext().IsValid()
	}))

	span := onlySpan(t, sr, h, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.True(t, sawSpan)
	assert.Equal(t, "GET /v1/ops/health", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
}

func TestTracing_NamesSpanByRoute(t *testing.T) {
	sr := recordSpans(t)

	r := chi.NewRouter()
	r.Use(middleware.Tracing("aircheck-test"))
	r.Get("/v1/air-quality/{city}", statusHandler(http.StatusOK).ServeHTTP)

	span := onlySpan(t, sr, r, httptest.NewRequest(http.MethodGet, "/v1/air-quality/Delhi", http.NoBody))

	assert.Equal(t, "GET /v1/air-quality/{city}", span.Name())
	route, ok := attrOf(span, "http.route")
	require.True(t, ok)
	assert.Equal(t, "/v1/air-quality/{city}", route.AsString())
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	sr := recordSpans(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/air-quality/Delhi", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	span := onlySpan(t, sr, middleware.Tracing("aircheck-test")(statusHandler(http.StatusOK)), req)

	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", span.Parent().SpanID().String())
}

func TestTracing_Status(t *testing.T) {
	tests := []struct {
		status int
		code   codes.Code
	}{
		{http.StatusOK, codes.Unset},
		{http.StatusUnprocessableEntity, codes.Unset},
		{http.StatusBadGateway, codes.Error},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := recordSpans(t)

			span := onlySpan(t, sr,
				middleware.Tracing("aircheck-test")(statusHandler(tt.status)),
				httptest.NewRequest(http.MethodGet, "/v1/air-quality/Delhi", http.NoBody))

			got, ok := attrOf(span, "http.response.status_code")
			require.True(t, ok)
			assert.Equal(t, int64(tt.status), got.AsInt64())
			assert.Equal(t, tt.code, span.Status().Code)
		})
	}
}

func TestTracing_RequestIDAttribute(t *testing.T) {
	sr := recordSpans(t)

	h := middleware.RequestID(middleware.Tracing("aircheck-test")(statusHandler(http.StatusOK)))
	span := onlySpan(t, sr, h, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	id, ok := attrOf(span, "request.id")
	require.True(t, ok)
	assert.Contains(t, id.AsString(), "req_")
}
