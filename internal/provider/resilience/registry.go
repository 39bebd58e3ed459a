package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HealthState summarizes a provider's circuit state.
type HealthState string

const (
	HealthOK       HealthState = "OK"
	HealthDegraded HealthState = "DEGRADED"
	HealthFail     HealthState = "FAIL"
)

// HealthFromCircuit maps a breaker state onto a HealthState.
// A half-open breaker is probing, so the provider counts as degraded.
func HealthFromCircuit(state gobreaker.State) HealthState {
	switch state {
	case gobreaker.StateOpen:
		return HealthFail
	case gobreaker.StateHalfOpen:
		return HealthDegraded
	default:
		return HealthOK
	}
}

// ProviderHealth is a point-in-time view of one registered provider.
type ProviderHealth struct {
	Name          string           `json:"name"`
	Status        HealthState      `json:"status"`
	Circuit       string           `json:"circuit"`
	CircuitState  gobreaker.State  `json:"-"`
	Counts        gobreaker.Counts `json:"-"`
	LastSuccessAt *time.Time       `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time       `json:"last_failure_at,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
}

// Registry tracks provider clients and the outcome of their latest calls.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	client      *Client
	lastSuccess time.Time
	lastFailure time.Time
	lastErr     error
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds a provider client. Registering a name twice replaces the
// earlier client and forgets its outcomes.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	r.entries[name] = &registryEntry{client: client}
	r.mu.Unlock()
}

// Record stores the outcome of a call made by the named provider.
// A nil err is a success. Unknown names are ignored.
func (r *Registry) Record(name string, err error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return
	}
	if err == nil {
		e.lastSuccess = now
		return
	}
	e.lastFailure = now
	e.lastErr = err
}

// Health returns the named provider's health, or nil if it is not registered.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	return e.snapshot(name)
}

// All returns the health of every registered provider ordered by name.
func (r *Registry) All() []*ProviderHealth {
	r.mu.RLock()
	out := make([]*ProviderHealth, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, e.snapshot(name))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e *registryEntry) snapshot(name string) *ProviderHealth {
	state := e.client.CircuitState()
	h := &ProviderHealth{
		Name:         name,
		Status:       HealthFromCircuit(state),
		Circuit:      state.String(),
		CircuitState: state,
		Counts:       e.client.CircuitCounts(),
	}
	if !e.lastSuccess.IsZero() {
		t := e.lastSuccess
		h.LastSuccessAt = &t
	}
	if !e.lastFailure.IsZero() {
		t := e.lastFailure
		h.LastFailureAt = &t
	}
	if e.lastErr != nil {
		h.LastError = e.lastErr.Error()
	}
	return h
}
