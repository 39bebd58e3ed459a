package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://aircheck.breatheroute.dev/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation      = problemBase + "validation-error"
	ProblemTypeNotFound        = problemBase + "not-found"
	ProblemTypeMethod          = problemBase + "method-not-allowed"
	ProblemTypeNoPM25Data      = problemBase + "no-pm25-data"
	ProblemTypeTooManyRequests = problemBase + "too-many-requests"
	ProblemTypeInternal        = problemBase + "internal-error"
	ProblemTypeUpstream        = problemBase + "upstream-error"
	ProblemTypeUnavailable     = problemBase + "service-unavailable"
)

// ProblemKind fixes the type, title and status shared by every problem of one kind.
type ProblemKind struct {
	Type   string
	Title  string
	Status int
}

// Problem kinds served by the API.
var (
	KindValidation      = ProblemKind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	KindNotFound        = ProblemKind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	KindMethod          = ProblemKind{ProblemTypeMethod, "Method not allowed", http.StatusMethodNotAllowed}
	KindNoPM25Data      = ProblemKind{ProblemTypeNoPM25Data, "No PM2.5 data", http.StatusUnprocessableEntity}
	KindTooManyRequests = ProblemKind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	KindInternal        = ProblemKind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	KindUpstream        = ProblemKind{ProblemTypeUpstream, "Upstream provider error", http.StatusBadGateway}
	KindUnavailable     = ProblemKind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

// New returns a Problem of kind k.
func (k ProblemKind) New(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.Type,
		Title:   k.Title,
		Status:  k.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// Write sends p with its status code. The trace ID is echoed as X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func NewBadRequest(traceID, detail string, errs []FieldError) *Problem {
	p := KindValidation.New(traceID, detail)
	p.Errors = errs
	return p
}

func NewNotFound(traceID, detail string) *Problem {
	return KindNotFound.New(traceID, detail)
}

func NewMethodNotAllowed(traceID, detail string) *Problem {
	return KindMethod.New(traceID, detail)
}

// NewNoPM25Data is returned for cities whose stations carry no PM2.5 reading.
func NewNoPM25Data(traceID, detail string) *Problem {
	return KindNoPM25Data.New(traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return KindTooManyRequests.New(traceID, detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return KindInternal.New(traceID, detail)
}

// NewBadGateway is returned when the upstream provider fails.
func NewBadGateway(traceID, detail string) *Problem {
	return KindUpstream.New(traceID, detail)
}

// NewServiceUnavailable is returned while the provider circuit is open.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return KindUnavailable.New(traceID, detail)
}
