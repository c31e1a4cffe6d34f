package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hollisb/airgrid/internal/httputil"
	"github.com/hollisb/airgrid/internal/metrics"
	"github.com/hollisb/airgrid/internal/models"
)

// SensorAPI fetches readings from the sensor network's JSON API.
type SensorAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSensorAPI(baseURL, apiKey string) *SensorAPI {
	return &SensorAPI{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  httputil.NewClient(),
	}
}

type readingsResponse struct {
	Readings []sensorReading `json:"readings"`
}

type sensorReading struct {
	SensorID   string   `json:"sensor_id"`
	MeasuredAt string   `json:"measured_at"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Value      *float64 `json:"value"`
}

// FetchReadings retrieves all readings measured since the given time.
// Rate-limit responses are retried with exponential backoff; other failures
// are permanent.
func (a *SensorAPI) FetchReadings(since time.Time) ([]models.Reading, error) {
	endpoint := fmt.Sprintf("%s/v1/readings?since=%s&apiKey=%s",
		a.baseURL, url.QueryEscape(since.UTC().Format(time.RFC3339)), a.apiKey)

	var body []byte
	operation := func() error {
		start := time.Now()
		resp, err := a.client.Get(endpoint)
		if err != nil {
			metrics.SensorAPICallsTotal.WithLabelValues("readings", "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch readings: %w", err))
		}
		defer resp.Body.Close()
		metrics.SensorAPILatency.WithLabelValues("readings").Observe(time.Since(start).Seconds())
		metrics.SensorAPICallsTotal.WithLabelValues("readings", resp.Status).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch readings: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	var data readingsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	var results []models.Reading
	for _, sr := range data.Readings {
		if sr.Value == nil {
			continue
		}
		measuredAt, err := parseTime(sr.MeasuredAt)
		if err != nil {
			continue
		}
		reading := models.Reading{
			SensorID:   sr.SensorID,
			MeasuredAt: measuredAt,
			Latitude:   sr.Lat,
			Longitude:  sr.Lon,
			Value:      *sr.Value,
		}
		reading.QCFlags = QualityFlagsToJSON(ValidateReading(&reading))
		results = append(results, reading)
	}

	return results, nil
}
