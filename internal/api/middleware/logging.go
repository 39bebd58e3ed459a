package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger attaches a request-scoped logger to the context, retrievable with
// zerolog.Ctx, and writes one access log line per request.
// Probe endpoints under /v1/ops/ log at debug unless they fail.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := requestLogger(log, r)
			r = r.WithContext(reqLog.WithContext(r.Context()))

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			accessEvent(reqLog, r.URL.Path, wrapped.statusCode).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", wrapped.statusCode).
				Int64("bytes", wrapped.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

func requestLogger(log zerolog.Logger, r *http.Request) zerolog.Logger {
	lc := log.With()
	if id := GetRequestID(r.Context()); id != "" {
		lc = lc.Str("request_id", id)
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		lc = lc.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	return lc.Logger()
}

func accessEvent(log zerolog.Logger, path string, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	case strings.HasPrefix(path, "/v1/ops/"):
		return log.Debug()
	default:
		return log.Info()
	}
}
