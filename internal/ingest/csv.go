package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hollisb/airgrid/internal/models"
)

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseCSV reads readings from a four-column table: time, latitude, longitude,
// value, matched by header name (a sensor_id column is picked up when
// present). Rows that fail to parse are skipped and counted rather than
// aborting the whole file.
func ParseCSV(r io.Reader) ([]models.Reading, int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	timeCol, ok := findColumn(cols, "time", "date", "measured_at")
	if !ok {
		return nil, 0, fmt.Errorf("no time column in header %v", header)
	}
	latCol, ok := findColumn(cols, "latitude", "lat")
	if !ok {
		return nil, 0, fmt.Errorf("no latitude column in header %v", header)
	}
	lonCol, ok := findColumn(cols, "longitude", "lon", "lng")
	if !ok {
		return nil, 0, fmt.Errorf("no longitude column in header %v", header)
	}
	valueCol, ok := findColumn(cols, "value", "pm25", "measurement")
	if !ok {
		return nil, 0, fmt.Errorf("no value column in header %v", header)
	}
	sensorCol, hasSensor := findColumn(cols, "sensor_id", "sensor", "station_id")

	var readings []models.Reading
	var skipped int
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		measuredAt, err := parseTime(record[timeCol])
		if err != nil {
			skipped++
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(record[latCol]), 64)
		if err != nil {
			skipped++
			continue
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[lonCol]), 64)
		if err != nil {
			skipped++
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[valueCol]), 64)
		if err != nil {
			skipped++
			continue
		}

		reading := models.Reading{
			MeasuredAt: measuredAt,
			Latitude:   lat,
			Longitude:  lon,
			Value:      value,
		}
		if hasSensor {
			reading.SensorID = strings.TrimSpace(record[sensorCol])
		}
		reading.QCFlags = QualityFlagsToJSON(ValidateReading(&reading))
		readings = append(readings, reading)
	}

	return readings, skipped, nil
}

func findColumn(cols map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := cols[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
