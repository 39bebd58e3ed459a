package airquality

// ExtractStation converts a raw provider record into a Station.
// When several pm25 measurements are present the last one wins.
func ExtractStation(record RawRecord) Station {
	var pm25 *float64
	for _, m := range record.Measurements {
		if m.Parameter != ParameterPM25 {
			continue
		}
		pm25 = nil
		if m.Value != nil {
			v := *m.Value
			pm25 = &v
		}
	}

	return Station{
		Name: record.Location,
		PM25: pm25,
	}
}

// ExtractStations converts raw records in order. The result is never nil.
func ExtractStations(records []RawRecord) []Station {
	stations := make([]Station, 0, len(records))
	for _, r := range records {
		stations = append(stations, ExtractStation(r))
	}
	return stations
}
