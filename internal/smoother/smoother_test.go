package smoother

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hollisb/airgrid/internal/models"
)

func testGrid(t *testing.T) []GridPoint {
	t.Helper()
	points, err := GridSpec{XMin: 0, XMax: 1, XStep: 1, YMin: 0, YMax: 1, YStep: 1}.Points()
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("len(grid) = %d, want 4", len(points))
	}
	return points
}

func TestSmoothGrid_SingleReadingFillsGridWithItsValue(t *testing.T) {
	grid := testGrid(t)
	readings := []models.Reading{stepReading(1, 0.5, 0.5, 42)}

	result := SmoothGrid(day(1), 0, 0.5, readings, grid)
	if len(result.Values) != 4 {
		t.Fatalf("len(Values) = %d, want 4", len(result.Values))
	}
	if result.Missing != 0 {
		t.Errorf("Missing = %d, want 0", result.Missing)
	}
	for i, sv := range result.Values {
		if !sv.Value.Valid {
			t.Fatalf("Values[%d] missing, want 42", i)
		}
		if math.IsNaN(sv.Value.Float64) {
			t.Fatalf("Values[%d] = NaN", i)
		}
		if math.Abs(sv.Value.Float64-42) > 1e-9 {
			t.Errorf("Values[%d] = %v, want 42", i, sv.Value.Float64)
		}
		if sv.GridID != grid[i].ID {
			t.Errorf("Values[%d].GridID = %d, want %d", i, sv.GridID, grid[i].ID)
		}
	}
}

func TestSmoothGrid_EmptyStepEmitsMissingMarkers(t *testing.T) {
	grid := testGrid(t)

	result := SmoothGrid(day(1), 0, 0.5, nil, grid)
	if len(result.Values) != 4 {
		t.Fatalf("len(Values) = %d, want full grid coverage", len(result.Values))
	}
	if result.Missing != 4 {
		t.Errorf("Missing = %d, want 4", result.Missing)
	}
	for i, sv := range result.Values {
		if sv.Value.Valid {
			t.Errorf("Values[%d] = %v, want missing marker", i, sv.Value.Float64)
		}
	}
}

func TestSmoothGrid_TagsStepAndIndex(t *testing.T) {
	grid := testGrid(t)
	readings := []models.Reading{stepReading(3, 0, 0, 1), stepReading(3, 1, 1, 2)}

	result := SmoothGrid(day(3), 7, 1, readings, grid)
	for i, sv := range result.Values {
		if !sv.MeasuredAt.Equal(day(3)) {
			t.Errorf("Values[%d].MeasuredAt = %v, want day 3", i, sv.MeasuredAt)
		}
		if sv.StepIndex != 7 {
			t.Errorf("Values[%d].StepIndex = %d, want 7", i, sv.StepIndex)
		}
	}
}

func TestRun_StepsAreIndependent(t *testing.T) {
	// Two steps with disjoint, constant-valued reading sets: each step's
	// full grid must carry its own constant with no cross-contamination.
	grid := testGrid(t)
	readings := []models.Reading{
		stepReading(1, 0.2, 0.2, 100),
		stepReading(1, 0.8, 0.8, 100),
		stepReading(2, 0.3, 0.3, -7),
		stepReading(2, 0.6, 0.6, -7),
	}

	result, err := Run(context.Background(), readings, grid, 0.5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(result.Steps))
	}
	if len(result.Values) != 8 {
		t.Fatalf("len(Values) = %d, want 8 (full coverage per step)", len(result.Values))
	}

	wantByStep := map[int]float64{0: 100, 1: -7}
	for _, sv := range result.Values {
		want := wantByStep[sv.StepIndex]
		if !sv.Value.Valid {
			t.Fatalf("step %d grid %d missing, want %v", sv.StepIndex, sv.GridID, want)
		}
		if math.Abs(sv.Value.Float64-want) > 1e-9 {
			t.Errorf("step %d grid %d = %v, want %v", sv.StepIndex, sv.GridID, sv.Value.Float64, want)
		}
	}
}

func TestRun_ConcatenatesInChronologicalOrder(t *testing.T) {
	grid := testGrid(t)
	// Deliberately unsorted input.
	readings := []models.Reading{
		stepReading(9, 0, 0, 3),
		stepReading(2, 0, 0, 1),
		stepReading(5, 0, 0, 2),
	}

	result, err := Run(context.Background(), readings, grid, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantDays := []int{2, 5, 9}
	if len(result.Steps) != len(wantDays) {
		t.Fatalf("len(Steps) = %d, want %d", len(result.Steps), len(wantDays))
	}
	for i, d := range wantDays {
		if !result.Steps[i].Step.Equal(day(d)) {
			t.Errorf("Steps[%d].Step = %v, want day %d", i, result.Steps[i].Step, d)
		}
		if result.Steps[i].Index != i {
			t.Errorf("Steps[%d].Index = %d, want %d", i, result.Steps[i].Index, i)
		}
	}

	// Concatenated values follow step order, full grid per step.
	for i, sv := range result.Values {
		wantStep := i / len(grid)
		if sv.StepIndex != wantStep {
			t.Fatalf("Values[%d].StepIndex = %d, want %d", i, sv.StepIndex, wantStep)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	grid := testGrid(t)

	if _, err := Run(context.Background(), nil, grid, 1); !errors.Is(err, ErrNoObservations) {
		t.Errorf("empty readings: err = %v, want ErrNoObservations", err)
	}

	readings := []models.Reading{stepReading(1, 0, 0, 1)}
	if _, err := Run(context.Background(), readings, grid, 0); !errors.Is(err, ErrBandwidth) {
		t.Errorf("zero bandwidth: err = %v, want ErrBandwidth", err)
	}
	if _, err := Run(context.Background(), readings, nil, 1); err == nil {
		t.Error("empty grid: err = nil, want error")
	}
}

func TestRun_CountsMissingCells(t *testing.T) {
	grid := testGrid(t)
	// A reading so remote that no grid cell has support with a tiny bandwidth.
	readings := []models.Reading{stepReading(1, 1e6, 1e6, 5)}

	result, err := Run(context.Background(), readings, grid, 0.001)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Missing != 4 {
		t.Errorf("Missing = %d, want 4", result.Missing)
	}
	for i, sv := range result.Values {
		if sv.Value.Valid {
			t.Errorf("Values[%d] = %v, want missing", i, sv.Value.Float64)
		}
	}
}
