package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SensorAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airgrid_sensor_api_calls_total",
			Help: "Total sensor API calls",
		},
		[]string{"endpoint", "status"},
	)

	SensorAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airgrid_sensor_api_latency_seconds",
			Help:    "Sensor API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airgrid_readings_ingested_total",
			Help: "Total readings successfully ingested",
		},
		[]string{"source"},
	)

	CVSplitsExcluded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airgrid_cv_splits_excluded_total",
			Help: "Leave-one-out splits excluded for lack of kernel support",
		},
	)

	GridCellsSmoothed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airgrid_grid_cells_smoothed_total",
			Help: "Grid cells assigned a smoothed value",
		},
	)

	GridCellsMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airgrid_grid_cells_missing_total",
			Help: "Grid cells emitted as missing for lack of kernel support",
		},
	)

	SmoothingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airgrid_smoothing_duration_seconds",
			Help:    "Wall time of a full smoothing run",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)
)
