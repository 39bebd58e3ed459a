package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aircheck/internal/airquality"
	"github.com/breatheroute/aircheck/internal/api/models"
	"github.com/breatheroute/aircheck/internal/api/response"
)

const (
	maxCityLength = 100

	// circuitRetryAfter matches the resilience circuit breaker open timeout.
	circuitRetryAfter = 60
)

// AirQualityChecker is the subset of airquality.Service used by the handler.
type AirQualityChecker interface {
	Check(ctx context.Context, city string) (*airquality.Report, error)
	Thresholds() airquality.ThresholdTable
	Aggregation() airquality.Aggregation
}

// AirQualityHandler handles air quality endpoints.
type AirQualityHandler struct {
	checker AirQualityChecker
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(checker AirQualityChecker) *AirQualityHandler {
	return &AirQualityHandler{checker: checker}
}

// GetCityAirQuality handles GET /v1/air-quality/{city}.
func (h *AirQualityHandler) GetCityAirQuality(w http.ResponseWriter, r *http.Request) {
	city, err := cityParam(r)
	if err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "city", Message: err.Error(), Code: "INVALID"},
		})
		return
	}

	report, err := h.checker.Check(r.Context(), city)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, models.NewAirQualityReport(report))
	case errors.Is(err, airquality.ErrEmptyInput):
		response.NoPM25Data(w, r, fmt.Sprintf("no station in %q reports PM2.5", city))
	case airquality.IsProviderUnavailable(err):
		response.ServiceUnavailable(w, r, "air quality provider is temporarily unavailable", circuitRetryAfter)
	case errors.Is(err, airquality.ErrFetch):
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("city", city).Msg("provider fetch failed")
		response.BadGateway(w, r, fmt.Sprintf("failed to fetch air quality data for %q", city))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("city", city).Msg("classification failed")
		response.InternalError(w, r, "failed to classify air quality")
	}
}

// ListLevels handles GET /v1/air-quality/levels.
func (h *AirQualityHandler) ListLevels(w http.ResponseWriter, r *http.Request) {
	thresholds := h.checker.Thresholds()

	items := make([]models.LevelBand, 0, len(thresholds))
	for _, t := range thresholds {
		band := models.LevelBand{
			Name:    t.Name,
			Range:   t.Range,
			Health:  t.Health,
			Caution: t.Caution,
			Mask:    t.Mask,
			Indoors: t.Indoors,
			Advice:  airquality.Advise(airquality.Tier{Mask: t.Mask, Indoors: t.Indoors}),
		}
		if !math.IsInf(t.Below, 1) {
			upper := t.Below
			band.UpperBound = &upper
		}
		items = append(items, band)
	}

	response.JSON(w, r, http.StatusOK, models.LevelList{
		Aggregation: string(h.checker.Aggregation()),
		Items:       items,
	})
}

// cityParam returns the decoded {city} path segment.
// chi matches on RawPath when the request carries one, leaving the param escaped.
func cityParam(r *http.Request) (string, error) {
	city := chi.URLParam(r, "city")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(city)
		if err != nil {
			return "", fmt.Errorf("city is not a valid path segment")
		}
		city = unescaped
	}

	switch {
	case strings.TrimSpace(city) == "":
		return "", errors.New("city must not be blank")
	case utf8.RuneCountInString(city) > maxCityLength:
		return "", fmt.Errorf("city must be at most %d characters", maxCityLength)
	case !utf8.ValidString(city):
		return "", errors.New("city must be valid UTF-8")
	}
	return city, nil
}
