// Package airquality provides city air quality checks: station extraction,
// per-city result caching, PM2.5 aggregation and severity classification.
package airquality

import (
	"errors"
	"time"
)

// Pipeline errors.
var (
	// ErrFetch wraps any failure returned by a Fetcher.
	ErrFetch = errors.New("fetch air quality data")

	// ErrProviderUnavailable is returned when the provider refuses requests
	// (circuit open or retries exhausted).
	ErrProviderUnavailable = errors.New("air quality provider unavailable")

	// ErrEmptyInput is returned when no station reports a PM2.5 value.
	ErrEmptyInput = errors.New("no PM2.5 data available")

	// ErrOutOfRange is returned when an index cannot be classified.
	ErrOutOfRange = errors.New("index out of classification range")

	// ErrInvalidThresholds is returned for a malformed threshold table.
	ErrInvalidThresholds = errors.New("invalid threshold table")
)

// ParameterPM25 is the measurement parameter name for PM2.5 in provider payloads.
const ParameterPM25 = "pm25"

// RawMeasurement is a single pollutant reading as reported by the provider.
type RawMeasurement struct {
	Parameter   string   `json:"parameter"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
}

// RawRecord is one station result as reported by the provider.
type RawRecord struct {
	Location     string           `json:"location"`
	City         string           `json:"city,omitempty"`
	Country      string           `json:"country,omitempty"`
	Measurements []RawMeasurement `json:"measurements"`
}

// Station is a monitoring location with its latest PM2.5 reading.
// PM25 is nil when the station did not report PM2.5.
type Station struct {
	Name string
	PM25 *float64
}

// HasPM25 reports whether the station carries a PM2.5 value.
func (s Station) HasPM25() bool {
	return s.PM25 != nil
}

// Tier is the classified severity for a computed index.
type Tier struct {
	// Name is the level name, e.g. "Good" or "Unhealthy".
	Name string

	// AQI is the unrounded index that produced this classification.
	AQI float64

	// Range is the human-readable band, e.g. "151-200".
	Range string

	// Health describes the expected health effects at this level.
	Health string

	// Caution is guidance for sensitive groups. Empty when none applies.
	Caution string

	// Mask indicates a mask is advised outdoors.
	Mask bool

	// Indoors indicates staying indoors is advised.
	Indoors bool
}

// Report is the outcome of a city check.
type Report struct {
	City     string
	Stations []Station

	// Level is nil when no stations were found for the city.
	Level *Tier

	Recommendation string
	CheckedAt      time.Time
}

// HasStations reports whether any station was found for the city.
func (r *Report) HasStations() bool {
	return len(r.Stations) > 0
}

// StationsWithPM25 returns the number of stations reporting PM2.5.
func (r *Report) StationsWithPM25() int {
	n := 0
	for _, s := range r.Stations {
		if s.HasPM25() {
			n++
		}
	}
	return n
}

// Float returns a pointer to v. Handy for building stations and raw measurements.
func Float(v float64) *float64 {
	return &v
}
