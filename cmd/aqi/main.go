// Package main provides the aqi command, which prints the air quality of a city.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aircheck/internal/airquality"
	"github.com/breatheroute/aircheck/internal/airquality/openaq"
	"github.com/breatheroute/aircheck/internal/api/models"
	"github.com/breatheroute/aircheck/internal/config"
)

// Version is set at compile time via ldflags.
var Version = "dev"

// Exit codes.
const (
	exitOK       = 0
	exitFetch    = 1
	exitUsage    = 2
	exitNoPM25   = 3
	exitInternal = 4
)

const defaultTimeout = 30 * time.Second

type options struct {
	city    string
	json    bool
	median  bool
	verbose bool
	timeout time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
// A nil fetcher uses the OpenAQ client configured from the environment.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, fetcher airquality.Fetcher) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "aqi: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "aqi: invalid configuration: %v\n", err)
		return exitUsage
	}

	level := zerolog.WarnLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()

	aggregation := cfg.Aggregation
	if opts.median {
		aggregation = airquality.AggregationMedian
	}

	if fetcher == nil {
		fetcher = openaq.NewClient(openaq.ClientConfig{
			BaseURL:    cfg.OpenAQBaseURL,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderMaxRetries,
			PageLimit:  cfg.OpenAQPageLimit,
		})
	}

	service := airquality.NewService(airquality.ServiceConfig{
		Fetcher:     fetcher,
		Aggregation: aggregation,
		Logger:      logger,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	return check(ctx, service, opts, stdout, stderr)
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	opts := options{}

	fs := flag.NewFlagSet("aqi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "aqi %s\n\nUsage: aqi [flags] <city>\n\nFlags:\n", Version)
		fs.PrintDefaults()
	}
	fs.BoolVar(&opts.json, "json", false, "print the report as JSON")
	fs.BoolVar(&opts.median, "median", false, "aggregate station readings with the median instead of the mean")
	fs.BoolVar(&opts.verbose, "v", false, "enable debug logging")
	fs.DurationVar(&opts.timeout, "timeout", defaultTimeout, "overall timeout for the check")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	// City names may contain spaces, so remaining arguments are joined.
	opts.city = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if opts.city == "" {
		fs.Usage()
		return opts, errors.New("a city is required")
	}
	if opts.timeout <= 0 {
		return opts, errors.New("timeout must be positive")
	}
	return opts, nil
}

func check(ctx context.Context, service *airquality.Service, opts options, stdout, stderr io.Writer) int {
	if !opts.json {
		fmt.Fprintf(stdout, "Checking air quality for %s...\n", opts.city)
	}

	report, err := service.Check(ctx, opts.city)
	switch {
	case errors.Is(err, airquality.ErrEmptyInput):
		fmt.Fprintf(stdout, "No PM2.5 data reported by stations in %s\n", opts.city)
		return exitNoPM25
	case errors.Is(err, airquality.ErrFetch):
		fmt.Fprintf(stderr, "aqi: %v\n", err)
		return exitFetch
	case err != nil:
		fmt.Fprintf(stderr, "aqi: %v\n", err)
		return exitInternal
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(models.NewAirQualityReport(report)); err != nil {
			fmt.Fprintf(stderr, "aqi: %v\n", err)
			return exitInternal
		}
		return exitOK
	}

	if report.Level == nil {
		fmt.Fprintf(stdout, "No stations found in %s\n", opts.city)
		return exitOK
	}

	fmt.Fprintf(stdout, "The air in %s is %s (%s)\n",
		opts.city, report.Level.Name, strconv.FormatFloat(report.Level.AQI, 'f', -1, 64))
	fmt.Fprintln(stdout, report.Level.Health)
	if report.Level.Caution != "" {
		fmt.Fprintln(stdout, report.Level.Caution)
	}
	fmt.Fprintln(stdout, report.Recommendation)
	return exitOK
}
