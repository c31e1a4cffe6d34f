package smoother

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/hollisb/airgrid/internal/models"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		n        int
		want     []float64
	}{
		{name: "linear range", min: 0.1, max: 0.5, n: 5, want: []float64{0.1, 0.2, 0.30000000000000004, 0.4, 0.5}},
		{name: "single candidate", min: 0.25, max: 1, n: 1, want: []float64{0.25}},
		{name: "two candidates hit both ends", min: 1, max: 3, n: 2, want: []float64{1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Candidates(tt.min, tt.max, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("Candidates[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSelectBandwidth_PrefersTighterFitOnLinearField(t *testing.T) {
	// Values linear in longitude: a tight bandwidth predicts held-out
	// endpoints from their nearest neighbour, a huge one from the global
	// mean, so the smaller candidate must win.
	byStep := PartitionBySteps([]models.Reading{
		stepReading(1, 0, 0, 0),
		stepReading(1, 1, 0, 1),
		stepReading(1, 2, 0, 2),
	})

	h, sweep, err := SelectBandwidth(context.Background(), []float64{0.1, 100}, byStep)
	if err != nil {
		t.Fatalf("SelectBandwidth: %v", err)
	}
	if h != 0.1 {
		t.Errorf("h = %v, want 0.1", h)
	}
	if len(sweep) != 2 {
		t.Fatalf("len(sweep) = %d, want 2", len(sweep))
	}
	if !sweep[0].Defined || !sweep[1].Defined {
		t.Fatalf("sweep not fully defined: %+v", sweep)
	}
	if sweep[0].Error >= sweep[1].Error {
		t.Errorf("sweep errors %v >= %v, want tight bandwidth to score lower", sweep[0].Error, sweep[1].Error)
	}
}

func TestSelectBandwidth_TieBreaksToFirstCandidate(t *testing.T) {
	// With 2 readings per step every candidate scores identically, so the
	// first one in sequence order must be selected.
	byStep := PartitionBySteps([]models.Reading{
		stepReading(1, 0, 0, 10),
		stepReading(1, 1, 0, 16),
	})

	h, _, err := SelectBandwidth(context.Background(), []float64{0.1, 1.0, 10.0}, byStep)
	if err != nil {
		t.Fatalf("SelectBandwidth: %v", err)
	}
	if h != 0.1 {
		t.Errorf("h = %v, want first candidate 0.1", h)
	}
}

func TestSelectBandwidth_Deterministic(t *testing.T) {
	byStep := PartitionBySteps([]models.Reading{
		stepReading(1, 0, 0, 3),
		stepReading(1, 0.4, 0.1, 5),
		stepReading(1, 1, 0.9, 8),
		stepReading(2, 0.2, 0.2, 4),
		stepReading(2, 0.8, 0.8, 7),
	})
	candidates := Candidates(0.05, 2, 10)

	h1, sweep1, err := SelectBandwidth(context.Background(), candidates, byStep)
	if err != nil {
		t.Fatalf("SelectBandwidth: %v", err)
	}
	h2, sweep2, err := SelectBandwidth(context.Background(), candidates, byStep)
	if err != nil {
		t.Fatalf("SelectBandwidth (second run): %v", err)
	}
	if h1 != h2 {
		t.Errorf("selection not reproducible: %v vs %v", h1, h2)
	}
	if !reflect.DeepEqual(sweep1, sweep2) {
		t.Errorf("sweep not reproducible:\n%+v\n%+v", sweep1, sweep2)
	}
}

func TestSelectBandwidth_SingleCandidate(t *testing.T) {
	byStep := PartitionBySteps([]models.Reading{
		stepReading(1, 0, 0, 1),
		stepReading(1, 1, 0, 2),
	})

	h, _, err := SelectBandwidth(context.Background(), []float64{0.7}, byStep)
	if err != nil {
		t.Fatalf("SelectBandwidth: %v", err)
	}
	if h != 0.7 {
		t.Errorf("h = %v, want 0.7", h)
	}
}

func TestSelectBandwidth_AllUndefinedFails(t *testing.T) {
	// Every step has a single reading: leave-one-out is impossible anywhere,
	// so selection must fail loudly instead of picking an arbitrary index.
	byStep := PartitionBySteps([]models.Reading{
		stepReading(1, 0, 0, 5),
		stepReading(2, 1, 1, 7),
	})

	_, sweep, err := SelectBandwidth(context.Background(), []float64{0.1, 1.0}, byStep)
	if !errors.Is(err, ErrSelectionFailed) {
		t.Fatalf("err = %v, want ErrSelectionFailed", err)
	}
	for i, r := range sweep {
		if r.Defined {
			t.Errorf("sweep[%d].Defined = true, want false", i)
		}
	}
}

func TestSelectBandwidth_NoCandidates(t *testing.T) {
	byStep := PartitionBySteps([]models.Reading{
		stepReading(1, 0, 0, 1),
		stepReading(1, 1, 0, 2),
	})

	_, _, err := SelectBandwidth(context.Background(), nil, byStep)
	if !errors.Is(err, ErrSelectionFailed) {
		t.Errorf("err = %v, want ErrSelectionFailed", err)
	}
}

func TestSelectBandwidth_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	byStep := PartitionBySteps([]models.Reading{
		stepReading(1, 0, 0, 1),
		stepReading(1, 1, 0, 2),
	})

	_, _, err := SelectBandwidth(ctx, []float64{0.1, 1.0}, byStep)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
