package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without a network call while the breaker rejects requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded wraps the last transport error once retries run out.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ClientConfig configures a Client. Zero durations and retry counts take
// the values from DefaultClientConfig.
type ClientConfig struct {
	// Name identifies the provider to the breaker and the registry.
	Name string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64

	// InitialInterval and MaxInterval bound the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker defaults to DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, registers the client and receives call outcomes.
	Registry *Registry

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// DefaultClientConfig returns the settings used for provider calls.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig(c.Name)
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	if c.CircuitBreaker == nil {
		c.CircuitBreaker = d.CircuitBreaker
	}
	return c
}

// Client sends provider requests through a circuit breaker and retries
// transport errors, 5xx and 429 responses with exponential backoff.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient creates a Client and registers it with cfg.Registry, if any.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker: NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker), //nolint:bodyclose // type param, not response
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// CircuitState returns the breaker's current state.
func (c *Client) CircuitState() gobreaker.State {
	return c.breaker.State()
}

// CircuitCounts returns the breaker's request counters.
func (c *Client) CircuitCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req, retrying under req's context.
//
// When retries run out on a 5xx or 429 response, that response is returned
// with a nil error so the caller can inspect the status. Transport failures
// come back wrapped in ErrMaxRetriesExceeded. An open breaker fails fast with
// ErrCircuitOpen.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var last *http.Response
	discard := func() {
		if last != nil {
			last.Body.Close()
			last = nil
		}
	}

	attempt := func() error {
		discard()

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		last = resp

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			return err
		case resp.StatusCode == http.StatusTooManyRequests:
			return &ServerError{StatusCode: resp.StatusCode}
		}
		return nil
	}

	err := backoff.Retry(attempt, c.policy(ctx))
	c.record(err)

	switch {
	case err == nil:
		return last, nil
	case last != nil && ctx.Err() == nil:
		return last, nil
	}

	discard()
	if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)
}

func (c *Client) record(err error) {
	if c.cfg.Registry != nil {
		c.cfg.Registry.Record(c.cfg.Name, err)
	}
}

// ServerError is a retryable HTTP status (5xx or 429).
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
