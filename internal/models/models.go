package models

import (
	"database/sql"
	"time"
)

// Reading is a single sensor measurement at a known location. Readings are
// treated as read-only input once loaded; duplicate (time, lat, lon) rows are
// permitted and left to the smoother as-is.
type Reading struct {
	ID         int64
	SensorID   string
	MeasuredAt time.Time
	Latitude   float64
	Longitude  float64
	Value      float64
	QCFlags    string
	CreatedAt  time.Time
}

// SmoothingRun records one complete smoothing pass: the grid it ran over and
// the bandwidth it used. Smoothed values reference their run.
type SmoothingRun struct {
	ID           int64
	Bandwidth    float64
	XMin         float64
	XMax         float64
	XStep        float64
	YMin         float64
	YMax         float64
	YStep        float64
	Steps        int
	MissingCells int
	CreatedAt    time.Time
}

// SmoothedValue is one grid cell's estimate for one time step. Value is NULL
// when the kernel had no support at that cell.
type SmoothedValue struct {
	RunID      int64
	StepIndex  int
	MeasuredAt time.Time
	GridID     int
	Latitude   float64
	Longitude  float64
	Value      sql.NullFloat64
}

// SweepPoint is one candidate bandwidth's cross-validation outcome. CVError is
// NULL when no time step produced a defined leave-one-out estimate.
type SweepPoint struct {
	ID             int64
	SweptAt        time.Time
	Bandwidth      float64
	CVError        sql.NullFloat64
	ExcludedSplits int
	SkippedSteps   int
}
