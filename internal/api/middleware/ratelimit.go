package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/breatheroute/aircheck/internal/api/models"
)

// RateLimitConfig caps requests per client IP within a sliding window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// StandardRateLimit applies to city lookups unless configured otherwise.
var StandardRateLimit = RateLimitConfig{
	RequestLimit: 100,
	WindowLength: time.Minute,
}

// RateLimitByIP limits by client IP, honouring X-Forwarded-For and X-Real-IP.
// Rejected requests get a 429 Problem with Retry-After set to the window in
// whole seconds, since httprate does not expose when the window resets.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(tooManyRequests(cfg.WindowLength)),
	)
}

func tooManyRequests(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		writeProblem(w, r, models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later."))
	}
}

// writeProblem stamps the request path on p and writes it.
func writeProblem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}
