package smoother

import (
	"fmt"
	"math"
)

// GridSpec describes the evaluation lattice: longitudes from XMin to XMax at
// XStep, latitudes from YMin to YMax at YStep. The grid is independent of the
// observation data and is materialized once per run.
type GridSpec struct {
	XMin, XMax, XStep float64
	YMin, YMax, YStep float64
}

// GridPoint is one fixed location of the evaluation lattice. ID is the point's
// index in the materialized grid and is stable for a given spec, so it can be
// used downstream to join external geometry.
type GridPoint struct {
	ID        int
	Longitude float64
	Latitude  float64
}

func (s GridSpec) Validate() error {
	if s.XStep <= 0 || s.YStep <= 0 {
		return fmt.Errorf("grid: steps must be positive (x=%v, y=%v)", s.XStep, s.YStep)
	}
	if s.XMax < s.XMin || s.YMax < s.YMin {
		return fmt.Errorf("grid: bounds out of order (x=[%v,%v], y=[%v,%v])", s.XMin, s.XMax, s.YMin, s.YMax)
	}
	return nil
}

// Points materializes the full Cartesian product in longitude-major order.
// Coordinates are computed from indices rather than accumulated, so a step
// like 0.1 does not drift over long axes.
func (s GridSpec) Points() ([]GridPoint, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	// The tolerance keeps an endpoint that lands on max in exact arithmetic,
	// e.g. (100-0)/0.1 evaluating to 999.9999... must still yield 1001 points.
	const tol = 1e-6
	nx := int(math.Floor((s.XMax-s.XMin)/s.XStep+tol)) + 1
	ny := int(math.Floor((s.YMax-s.YMin)/s.YStep+tol)) + 1

	points := make([]GridPoint, 0, nx*ny)
	for i := 0; i < nx; i++ {
		x := s.XMin + float64(i)*s.XStep
		for j := 0; j < ny; j++ {
			points = append(points, GridPoint{
				ID:        len(points),
				Longitude: x,
				Latitude:  s.YMin + float64(j)*s.YStep,
			})
		}
	}
	return points, nil
}
