// Package openaq provides a client for the OpenAQ latest-measurements API.
package openaq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/breatheroute/aircheck/internal/airquality"
	"github.com/breatheroute/aircheck/internal/provider/resilience"
)

// ErrPageMissing means a follow-up page vanished mid-pagination, leaving the
// station list incomplete.
var ErrPageMissing = errors.New("openaq: result page missing")

const (
	// DefaultBaseURL is the base URL for the OpenAQ API.
	DefaultBaseURL = "https://api.openaq.org/v1"

	// ProviderName identifies this provider.
	ProviderName = "openaq"

	// DefaultPageLimit is the number of results requested per page.
	DefaultPageLimit = 100

	// maxPages bounds pagination against a misbehaving meta block.
	maxPages = 50
)

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// MaxRetries for the default resilient client (default: 3).
	MaxRetries uint64

	// PageLimit is the page size (default: DefaultPageLimit).
	PageLimit int

	// Registry receives health updates for the default resilient client.
	Registry *resilience.Registry
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an OpenAQ API client. It implements airquality.Fetcher.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	pageLimit  int
}

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		maxRetries := cfg.MaxRetries
		if maxRetries == 0 {
			maxRetries = 3
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      maxRetries,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		pageLimit:  pageLimit,
	}
}

// API response types (from OpenAQ /latest).

type latestResponse struct {
	Meta    metaInfo       `json:"meta"`
	Results []latestResult `json:"results"`
}

type metaInfo struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Found int `json:"found"`
}

type latestResult struct {
	Location     string            `json:"location"`
	City         string            `json:"city"`
	Country      string            `json:"country"`
	Measurements []measurementData `json:"measurements"`
}

type measurementData struct {
	Parameter   string   `json:"parameter"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit"`
	LastUpdated string   `json:"lastUpdated"`
}

// Fetch retrieves the latest station records for city across all pages.
// An unknown city (404 on the first page) yields an empty slice, not an error.
// A 404 on a later page is ErrPageMissing.
func (c *Client) Fetch(ctx context.Context, city string) ([]airquality.RawRecord, error) {
	records := make([]airquality.RawRecord, 0)
	page := 1

	for {
		result, err := c.fetchPage(ctx, city, page)
		if err != nil {
			return nil, err
		}
		if result == nil {
			if page == 1 {
				break
			}
			return nil, fmt.Errorf("%w: page %d for %q returned 404", ErrPageMissing, page, city)
		}
		for i := range result.Results {
			records = append(records, toRawRecord(&result.Results[i]))
		}

		if !hasMorePages(result, page, c.pageLimit) || page >= maxPages {
			break
		}
		page++
	}

	return records, nil
}

// fetchPage fetches a single page. A nil result means the endpoint answered 404.
func (c *Client) fetchPage(ctx context.Context, city string, page int) (*latestResponse, error) {
	query := url.Values{}
	query.Set("city", city)
	query.Set("limit", strconv.Itoa(c.pageLimit))
	query.Set("page", strconv.Itoa(page))

	reqURL := c.baseURL + "/latest?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrMaxRetriesExceeded) {
			return nil, fmt.Errorf("%w: %w", airquality.ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("fetch latest: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d from latest endpoint", airquality.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d from latest endpoint", resp.StatusCode)
	}

	var result latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode latest response: %w", err)
	}

	return &result, nil
}

// hasMorePages reports whether another page should be requested.
func hasMorePages(result *latestResponse, page, requested int) bool {
	limit := result.Meta.Limit
	if limit <= 0 {
		limit = requested
	}
	if len(result.Results) < limit {
		return false
	}
	return page*limit < result.Meta.Found
}

// toRawRecord converts an API result to the domain RawRecord.
func toRawRecord(r *latestResult) airquality.RawRecord {
	measurements := make([]airquality.RawMeasurement, 0, len(r.Measurements))
	for _, m := range r.Measurements {
		measurements = append(measurements, airquality.RawMeasurement{
			Parameter:   m.Parameter,
			Value:       m.Value,
			Unit:        m.Unit,
			LastUpdated: m.LastUpdated,
		})
	}

	return airquality.RawRecord{
		Location:     r.Location,
		City:         r.City,
		Country:      r.Country,
		Measurements: measurements,
	}
}
