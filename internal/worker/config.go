// Package worker keeps the station cache warm for a fixed set of cities.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for the cache refresh job.
type RefreshConfig struct {
	// Cities are refreshed in order.
	// If empty, uses DefaultCities.
	Cities []string

	// Concurrency is the number of cities refreshed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds each city refresh.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Cities:      DefaultCities(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultCities returns the cities warmed when none are configured.
func DefaultCities() []string {
	return []string{
		"Amsterdam",
		"Rotterdam",
		"Utrecht",
		"London",
		"Paris",
		"Berlin",
		"Delhi",
	}
}

// withDefaults fills zero fields from DefaultRefreshConfig.
func (c RefreshConfig) withDefaults() RefreshConfig {
	defaults := DefaultRefreshConfig()
	if len(c.Cities) == 0 {
		c.Cities = defaults.Cities
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}

// TotalCities returns the number of cities to refresh.
func (c RefreshConfig) TotalCities() int {
	return len(c.Cities)
}
