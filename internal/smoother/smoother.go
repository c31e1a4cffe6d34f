package smoother

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hollisb/airgrid/internal/metrics"
	"github.com/hollisb/airgrid/internal/models"
)

// StepResult is one time step smoothed across the whole grid.
type StepResult struct {
	Step    time.Time
	Index   int // sequential per-run step index, chronological
	Values  []models.SmoothedValue
	Missing int // grid cells with no support
}

// Result is the full long-form output of a smoothing run: every grid cell for
// every time step, concatenated in chronological step order.
type Result struct {
	Bandwidth float64
	Steps     []StepResult
	Values    []models.SmoothedValue
	Missing   int
}

// SmoothGrid evaluates one time step at every grid point. Cells where the
// kernel has no support (including the whole grid when readings is empty) are
// emitted with a NULL value rather than dropped, so every step always covers
// the full grid.
func SmoothGrid(step time.Time, index int, h float64, readings []models.Reading, grid []GridPoint) StepResult {
	result := StepResult{
		Step:   step,
		Index:  index,
		Values: make([]models.SmoothedValue, 0, len(grid)),
	}

	for _, p := range grid {
		sv := models.SmoothedValue{
			StepIndex:  index,
			MeasuredAt: step,
			GridID:     p.ID,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
		}
		v, err := Smooth(p.Longitude, p.Latitude, readings, h)
		if err != nil {
			result.Missing++
		} else {
			sv.Value = sql.NullFloat64{Float64: v, Valid: true}
		}
		result.Values = append(result.Values, sv)
	}

	metrics.GridCellsSmoothed.Add(float64(len(grid) - result.Missing))
	metrics.GridCellsMissing.Add(float64(result.Missing))
	return result
}

// Run smooths every distinct time step in the readings onto the grid with a
// single global bandwidth. Steps are independent and are smoothed
// concurrently; per-step batches are collected and concatenated once, in
// chronological order, so parallelism never reorders the output.
func Run(ctx context.Context, readings []models.Reading, grid []GridPoint, h float64) (*Result, error) {
	if h <= 0 {
		return nil, fmt.Errorf("%w: h=%v", ErrBandwidth, h)
	}
	if len(grid) == 0 {
		return nil, errors.New("smoother: empty grid")
	}

	byStep := PartitionBySteps(readings)
	steps := StepTimes(byStep)
	if len(steps) == 0 {
		return nil, ErrNoObservations
	}

	start := time.Now()
	defer func() {
		metrics.SmoothingDuration.Observe(time.Since(start).Seconds())
	}()

	result := &Result{
		Bandwidth: h,
		Steps:     make([]StepResult, len(steps)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, step := range steps {
		i, step := i, step
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Steps[i] = SmoothGrid(step, i, h, byStep[step], grid)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("smooth steps: %w", err)
	}

	result.Values = make([]models.SmoothedValue, 0, len(steps)*len(grid))
	for _, sr := range result.Steps {
		result.Values = append(result.Values, sr.Values...)
		result.Missing += sr.Missing
	}
	return result, nil
}
