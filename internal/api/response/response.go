// Package response writes JSON and Problem bodies for API handlers.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/breatheroute/aircheck/internal/api/middleware"
	"github.com/breatheroute/aircheck/internal/api/models"
)

// JSON writes data with status, echoing the request ID. A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	h := w.Header()
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		h.Set("X-Request-Id", requestID)
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func kind(w http.ResponseWriter, r *http.Request, k models.ProblemKind, detail string) {
	Error(w, r, k.New(middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400 with optional field errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errs))
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	kind(w, r, models.KindNotFound, detail)
}

// NoPM25Data writes a 422 for a city whose stations report no PM2.5.
func NoPM25Data(w http.ResponseWriter, r *http.Request, detail string) {
	kind(w, r, models.KindNoPM25Data, detail)
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	kind(w, r, models.KindInternal, detail)
}

// BadGateway writes a 502 for a failed provider call.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	kind(w, r, models.KindUpstream, detail)
}

// ServiceUnavailable writes a 503. A positive retryAfter, in seconds, sets Retry-After.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	kind(w, r, models.KindUnavailable, detail)
}
