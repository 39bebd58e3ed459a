package airquality

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Threshold is one row of a ThresholdTable. An index belongs to the first
// threshold whose Below bound is strictly greater than it.
type Threshold struct {
	Below   float64
	Name    string
	Range   string
	Health  string
	Caution string
	Mask    bool
	Indoors bool
}

// ThresholdTable is an ordered set of thresholds with ascending bounds.
// The last bound is +Inf so every non-negative index matches exactly one row.
type ThresholdTable []Threshold

// DefaultThresholds returns the US EPA PM2.5 bands.
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		{
			Below: 51, Name: "Good", Range: "0-50",
			Health: "Air quality is considered satisfactory, and air pollution poses little or no risk.",
		},
		{
			Below: 101, Name: "Moderate", Range: "51-100",
			Health: "Air quality is acceptable; however, for some pollutants there may be a moderate health concern " +
				"for a very small number of people who are unusually sensitive to air pollution.",
			Caution: cautionSensitiveLimit,
		},
		{
			Below: 151, Name: "Unhealthy for Sensitive Groups", Range: "101-150",
			Health: "Members of sensitive groups may experience health effects. " +
				"The general public is not likely to be affected.",
			Caution: cautionSensitiveLimit,
		},
		{
			Below: 201, Name: "Unhealthy", Range: "151-200", Mask: true,
			Health: "Everyone may begin to experience health effects; " +
				"members of sensitive groups may experience more serious health effects.",
			Caution: "Active children and adults, and people with respiratory disease, such as asthma, " +
				"should avoid prolonged outdoor exertion; " +
				"everyone else, especially children, should limit prolonged outdoor exertion.",
		},
		{
			Below: 301, Name: "Very Unhealthy", Range: "201-300", Mask: true,
			Health: "Health warnings of emergency conditions. The entire population is more likely to be affected.",
			Caution: "Active children and adults, and people with respiratory disease, such as asthma, " +
				"should avoid all outdoor exertion; " +
				"everyone else, especially children, should limit outdoor exertion.",
		},
		{
			Below: math.Inf(1), Name: "Hazardous", Range: "300+", Indoors: true,
			Health:  "Health alert: everyone may experience more serious health effects.",
			Caution: "Everyone should avoid all outdoor exertion.",
		},
	}
}

const cautionSensitiveLimit = "Active children and adults, and people with respiratory disease, such as asthma, " +
	"should limit prolonged outdoor exertion."

// NewThresholdTable validates thresholds and returns them as a table.
func NewThresholdTable(thresholds []Threshold) (ThresholdTable, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("%w: no thresholds", ErrInvalidThresholds)
	}

	for i, t := range thresholds {
		if math.IsNaN(t.Below) {
			return nil, fmt.Errorf("%w: threshold %q has NaN bound", ErrInvalidThresholds, t.Name)
		}
		if i > 0 && t.Below <= thresholds[i-1].Below {
			return nil, fmt.Errorf("%w: bound %v of %q is not above %v",
				ErrInvalidThresholds, t.Below, t.Name, thresholds[i-1].Below)
		}
	}

	if last := thresholds[len(thresholds)-1]; !math.IsInf(last.Below, 1) {
		return nil, fmt.Errorf("%w: last bound must be unbounded, got %v", ErrInvalidThresholds, last.Below)
	}

	table := make(ThresholdTable, len(thresholds))
	copy(table, thresholds)
	return table, nil
}

// Classify maps index to a Tier using an ascending scan of the table.
func (t ThresholdTable) Classify(index float64) (Tier, error) {
	if math.IsNaN(index) || index < 0 {
		return Tier{}, fmt.Errorf("%w: %v", ErrOutOfRange, index)
	}

	for _, th := range t {
		if index < th.Below {
			return Tier{
				Name:    th.Name,
				AQI:     index,
				Range:   th.Range,
				Health:  th.Health,
				Caution: th.Caution,
				Mask:    th.Mask,
				Indoors: th.Indoors,
			}, nil
		}
	}

	return Tier{}, fmt.Errorf("%w: %v exceeds every threshold", ErrOutOfRange, index)
}

// Classify maps index to a Tier using DefaultThresholds.
func Classify(index float64) (Tier, error) {
	return DefaultThresholds().Classify(index)
}

// Aggregation selects how station values are combined into a city index.
type Aggregation string

const (
	AggregationMean   Aggregation = "mean"
	AggregationMedian Aggregation = "median"
)

// ParseAggregation parses a configured aggregation name. Empty means mean.
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(strings.TrimSpace(s))) {
	case "", AggregationMean:
		return AggregationMean, nil
	case AggregationMedian:
		return AggregationMedian, nil
	default:
		return "", fmt.Errorf("unknown aggregation %q", s)
	}
}

// Apply aggregates stations using the selected strategy.
func (a Aggregation) Apply(stations []Station) (float64, error) {
	if a == AggregationMedian {
		return AggregateMedian(stations)
	}
	return Aggregate(stations)
}

// Aggregate returns the mean PM2.5 over stations that report a value.
// Stations without PM2.5 are ignored.
func Aggregate(stations []Station) (float64, error) {
	values := presentValues(stations)
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// AggregateMedian returns the median PM2.5 over stations that report a value.
func AggregateMedian(stations []Station) (float64, error) {
	values := presentValues(stations)
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], nil
	}
	return (values[mid-1] + values[mid]) / 2, nil
}

func presentValues(stations []Station) []float64 {
	values := make([]float64, 0, len(stations))
	for _, s := range stations {
		if s.PM25 != nil {
			values = append(values, *s.PM25)
		}
	}
	return values
}
