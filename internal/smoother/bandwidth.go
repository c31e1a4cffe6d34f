package smoother

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hollisb/airgrid/internal/metrics"
	"github.com/hollisb/airgrid/internal/models"
)

// Candidates builds a linear range of n candidate bandwidths from min to max
// inclusive.
func Candidates(min, max float64, n int) []float64 {
	if n <= 1 {
		return []float64{min}
	}
	step := (max - min) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = min + float64(i)*step
	}
	return out
}

// SelectBandwidth cross-validates every candidate and returns the one with the
// lowest defined error, together with the full sweep for diagnostics. Ties go
// to the earliest candidate in the supplied order, so selection is
// deterministic for identical inputs.
//
// Candidates are evaluated concurrently; the sweep is the expensive part of a
// run (roughly n² per time step per candidate), so callers should bound it
// with a context deadline.
//
// Returns ErrSelectionFailed when no candidate has a defined error, which
// happens when every time step holds fewer than 2 readings.
func SelectBandwidth(ctx context.Context, candidates []float64, byStep map[time.Time][]models.Reading) (float64, []CVResult, error) {
	if len(candidates) == 0 {
		return 0, nil, fmt.Errorf("%w: no candidates supplied", ErrSelectionFailed)
	}

	sweep := make([]CVResult, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, h := range candidates {
		i, h := i, h
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sweep[i] = CrossValidate(h, byStep)
			metrics.CVSplitsExcluded.Add(float64(sweep[i].ExcludedSplits))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, fmt.Errorf("bandwidth sweep: %w", err)
	}

	bestIdx := -1
	for i, r := range sweep {
		if !r.Defined {
			continue
		}
		if bestIdx == -1 || r.Error < sweep[bestIdx].Error {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return 0, sweep, fmt.Errorf("%w: no time step had 2 or more readings across %d candidates", ErrSelectionFailed, len(candidates))
	}
	return sweep[bestIdx].Bandwidth, sweep, nil
}
