package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/breatheroute/aircheck/internal/api/middleware"
	"github.com/breatheroute/aircheck/internal/api/models"
	"github.com/breatheroute/aircheck/internal/api/response"
)

const testRequestID = "req_0123456789abcdef0123"

func newRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	return req.WithContext(middleware.WithRequestID(req.Context(), testRequestID))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("decoding problem: %v", err)
	}
	return problem
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, newRequest("/v1/ops/health"), http.StatusOK, map[string]string{"status": "OK"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Request-Id"); got != testRequestID {
		t.Errorf("X-Request-Id = %q, want %q", got, testRequestID)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rec.Body.String(); body != "{\"status\":\"OK\"}\n" {
		t.Errorf("body = %q", body)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody), http.StatusOK, nil)

	if got := rec.Header().Get("X-Request-Id"); got != "" {
		t.Errorf("X-Request-Id = %q, want none", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty for nil data", rec.Body.String())
	}
}

func TestBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	response.BadRequest(rec, newRequest("/v1/air-quality/%20"), "city must not be blank", []models.FieldError{
		{Field: "city", Message: "is required", Code: "REQUIRED"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	problem := decodeProblem(t, rec)
	if problem.TraceID != testRequestID {
		t.Errorf("traceId = %q", problem.TraceID)
	}
	if problem.Instance != "/v1/air-quality/ " {
		t.Errorf("instance = %q, want decoded path", problem.Instance)
	}
	if len(problem.Errors) != 1 || problem.Errors[0].Field != "city" {
		t.Errorf("errors = %+v", problem.Errors)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
		typ    string
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "no route") }, http.StatusNotFound, models.ProblemTypeNotFound},
		{"no pm25", func(w http.ResponseWriter, r *http.Request) { response.NoPM25Data(w, r, "no PM2.5") }, http.StatusUnprocessableEntity, models.ProblemTypeNoPM25Data},
		{"internal", func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "boom") }, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"bad gateway", func(w http.ResponseWriter, r *http.Request) { response.BadGateway(w, r, "upstream 500") }, http.StatusBadGateway, models.ProblemTypeUpstream},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "circuit open", 0) }, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, newRequest("/v1/air-quality/Delhi"))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q", ct)
			}
			problem := decodeProblem(t, rec)
			if problem.Status != tt.status || problem.Type != tt.typ {
				t.Errorf("problem = %d %q, want %d %q", problem.Status, problem.Type, tt.status, tt.typ)
			}
			if problem.Instance != "/v1/air-quality/Delhi" {
				t.Errorf("instance = %q", problem.Instance)
			}
		})
	}
}

func TestServiceUnavailable_RetryAfter(t *testing.T) {
	tests := map[int]string{60: "60", 0: ""}

	for retryAfter, want := range tests {
		rec := httptest.NewRecorder()
		response.ServiceUnavailable(rec, newRequest("/v1/air-quality/Delhi"), "circuit open", retryAfter)

		if got := rec.Header().Get("Retry-After"); got != want {
			t.Errorf("retryAfter %d: Retry-After = %q, want %q", retryAfter, got, want)
		}
	}
}
