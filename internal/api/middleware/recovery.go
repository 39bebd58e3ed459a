package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aircheck/internal/api/models"
)

// Recovery turns a handler panic into a logged 500 Problem.
// http.ErrAbortHandler is re-panicked so net/http still aborts the connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					handlePanic(log, w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func handlePanic(log zerolog.Logger, w http.ResponseWriter, r *http.Request, rec any) {
	if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
		panic(rec)
	}

	requestID := GetRequestID(r.Context())
	log.Error().
		Str("request_id", requestID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Interface("panic", rec).
		Bytes("stack", debug.Stack()).
		Msg("panic recovered")

	writeProblem(w, r, models.NewInternalError(requestID, "an unexpected error occurred"))
}
