package smoother

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hollisb/airgrid/internal/models"
)

// CVResult reports the leave-one-out cross-validation outcome for one
// candidate bandwidth. Error is only meaningful when Defined is true.
type CVResult struct {
	Bandwidth      float64
	Error          float64
	Defined        bool
	Steps          int // time steps that contributed a defined mean
	SkippedSteps   int // steps with fewer than 2 readings, or where every split failed
	ExcludedSplits int // leave-one-out splits excluded for lack of support
}

// PartitionBySteps groups readings by their time step.
func PartitionBySteps(readings []models.Reading) map[time.Time][]models.Reading {
	byStep := make(map[time.Time][]models.Reading)
	for _, r := range readings {
		byStep[r.MeasuredAt] = append(byStep[r.MeasuredAt], r)
	}
	return byStep
}

// StepTimes returns the partition's time steps in chronological order.
func StepTimes(byStep map[time.Time][]models.Reading) []time.Time {
	steps := make([]time.Time, 0, len(byStep))
	for t := range byStep {
		steps = append(steps, t)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Before(steps[j]) })
	return steps
}

// CrossValidate estimates the generalization error of bandwidth h by holding
// out each reading of each time step in turn and predicting it from the rest
// of that step. A split whose prediction has no support is excluded from the
// step mean rather than aborting the whole estimate; a step with fewer than 2
// readings cannot be resampled and is skipped. The overall error is the mean
// of the defined per-step mean squared errors.
//
// Steps are visited in chronological order so the aggregation is reproducible
// bit-for-bit across runs.
func CrossValidate(h float64, byStep map[time.Time][]models.Reading) CVResult {
	result := CVResult{Bandwidth: h}

	var stepMeans []float64
	holdout := make([]models.Reading, 0, 64)

	for _, step := range StepTimes(byStep) {
		readings := byStep[step]
		if len(readings) < 2 {
			result.SkippedSteps++
			continue
		}

		var squaredErrors []float64
		for i, held := range readings {
			holdout = holdout[:0]
			holdout = append(holdout, readings[:i]...)
			holdout = append(holdout, readings[i+1:]...)

			predicted, err := Smooth(held.Longitude, held.Latitude, holdout, h)
			if err != nil {
				result.ExcludedSplits++
				continue
			}
			diff := predicted - held.Value
			squaredErrors = append(squaredErrors, diff*diff)
		}

		if len(squaredErrors) == 0 {
			result.SkippedSteps++
			continue
		}
		stepMeans = append(stepMeans, stat.Mean(squaredErrors, nil))
	}

	result.Steps = len(stepMeans)
	if len(stepMeans) == 0 {
		return result
	}
	result.Error = stat.Mean(stepMeans, nil)
	result.Defined = true
	return result
}
