package models

import "github.com/breatheroute/aircheck/internal/airquality"

// ReportStatus distinguishes a classified city from one without stations.
type ReportStatus string

const (
	ReportStatusOK         ReportStatus = "OK"
	ReportStatusNoStations ReportStatus = "NO_STATIONS"
)

// AirQualityReport is the response for GET /v1/air-quality/{city}.
type AirQualityReport struct {
	City           string        `json:"city"`
	Status         ReportStatus  `json:"status"`
	Stations       []StationPM25 `json:"stations"`
	Level          *Level        `json:"level,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
	CheckedAt      Timestamp     `json:"checkedAt"`
}

// StationPM25 is a station with its latest PM2.5 reading, if any.
type StationPM25 struct {
	Name string   `json:"name"`
	PM25 *float64 `json:"pm25"`
}

// Level is a classified severity.
type Level struct {
	Name    string  `json:"name"`
	AQI     float64 `json:"aqi"`
	Range   string  `json:"range"`
	Health  string  `json:"health"`
	Caution string  `json:"caution,omitempty"`
	Mask    bool    `json:"mask"`
	Indoors bool    `json:"indoors"`
}

// LevelBand is one row of the classification table.
// UpperBound is exclusive and omitted for the open-ended top band.
type LevelBand struct {
	Name       string   `json:"name"`
	Range      string   `json:"range"`
	UpperBound *float64 `json:"upperBound,omitempty"`
	Health     string   `json:"health"`
	Caution    string   `json:"caution,omitempty"`
	Mask       bool     `json:"mask"`
	Indoors    bool     `json:"indoors"`
	Advice     string   `json:"advice"`
}

// LevelList is the response for GET /v1/air-quality/levels.
type LevelList struct {
	Aggregation string      `json:"aggregation"`
	Items       []LevelBand `json:"items"`
}

// NewAirQualityReport converts a service report into its wire form.
func NewAirQualityReport(report *airquality.Report) AirQualityReport {
	stations := make([]StationPM25, 0, len(report.Stations))
	for _, s := range report.Stations {
		stations = append(stations, StationPM25{Name: s.Name, PM25: s.PM25})
	}

	resp := AirQualityReport{
		City:      report.City,
		Status:    ReportStatusNoStations,
		Stations:  stations,
		CheckedAt: Timestamp(report.CheckedAt),
	}

	if report.Level != nil {
		resp.Status = ReportStatusOK
		resp.Level = &Level{
			Name:    report.Level.Name,
			AQI:     report.Level.AQI,
			Range:   report.Level.Range,
			Health:  report.Level.Health,
			Caution: report.Level.Caution,
			Mask:    report.Level.Mask,
			Indoors: report.Level.Indoors,
		}
		resp.Recommendation = report.Recommendation
	}

	return resp
}
