// Package config loads aircheck configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aircheck/internal/airquality"
	"github.com/breatheroute/aircheck/internal/airquality/openaq"
)

// Config holds runtime configuration shared by the CLI, API and worker.
type Config struct {
	Env  string
	Port string

	// LogLevel is the zerolog level name (default: info).
	LogLevel zerolog.Level

	// OpenAQ provider.
	OpenAQBaseURL      string
	OpenAQPageLimit    int
	ProviderTimeout    time.Duration
	ProviderMaxRetries uint64

	// Aggregation selects mean (default) or median.
	Aggregation airquality.Aggregation

	// WarmCities are refreshed by the worker.
	WarmCities         []string
	RefreshInterval    time.Duration
	RefreshConcurrency int

	// RateLimitRequests per RateLimitWindow per client IP on city lookups.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Telemetry.
	OTelEnabled  bool
	OTelEndpoint string

	// Pub/Sub job intake for the worker. Disabled when ProjectID is empty.
	PubSubProjectID    string
	PubSubSubscription string
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real environment variables take precedence.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:                getEnvOrDefault("APP_ENV", "development"),
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		OpenAQBaseURL:      getEnvOrDefault("OPENAQ_BASE_URL", openaq.DefaultBaseURL),
		WarmCities:         getEnvList("WARM_CITIES"),
		OTelEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "aircheck-refresh"),
	}

	var errs []error

	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	if cfg.OpenAQPageLimit, err = getEnvInt("OPENAQ_PAGE_LIMIT", openaq.DefaultPageLimit); err != nil {
		errs = append(errs, err)
	}
	if cfg.ProviderTimeout, err = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}

	retries, err := getEnvInt("PROVIDER_MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, err)
	} else if retries < 0 {
		errs = append(errs, fmt.Errorf("invalid PROVIDER_MAX_RETRIES: must not be negative"))
	} else {
		cfg.ProviderMaxRetries = uint64(retries)
	}

	if cfg.Aggregation, err = airquality.ParseAggregation(os.Getenv("AQI_AGGREGATION")); err != nil {
		errs = append(errs, fmt.Errorf("invalid AQI_AGGREGATION: %w", err))
	}
	if cfg.RefreshInterval, err = getEnvDuration("REFRESH_INTERVAL", 15*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.RefreshConcurrency, err = getEnvInt("REFRESH_CONCURRENCY", 3); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimitRequests, err = getEnvInt("RATE_LIMIT_REQUESTS", 100); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.OTelEnabled, err = getEnvBool("OTEL_ENABLED", false); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAQPageLimit <= 0 {
		errs = append(errs, errors.New("OPENAQ_PAGE_LIMIT must be positive"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.RefreshInterval < time.Minute {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be at least 1m"))
	}
	if c.RefreshConcurrency <= 0 {
		errs = append(errs, errors.New("REFRESH_CONCURRENCY must be positive"))
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getEnvList splits a comma-separated variable, dropping blanks.
// City names are kept verbatim apart from surrounding whitespace.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
