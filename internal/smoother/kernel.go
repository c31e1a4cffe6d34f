package smoother

import (
	"fmt"
	"math"

	"github.com/hollisb/airgrid/internal/models"
)

// Smooth estimates the field value at (lon, lat) as the Gaussian-kernel
// weighted mean of the given readings: weight exp(-d²/2h²) by squared
// Euclidean distance in degree space. The result is a convex combination of
// the input values, so it is bounded by their min and max.
//
// Returns ErrNoObservations for an empty input and ErrNoSupport when every
// weight underflows to zero (exp underflows once d²/2h² exceeds roughly 745,
// so a tiny bandwidth against distant readings fails loudly instead of
// dividing by zero).
func Smooth(lon, lat float64, readings []models.Reading, h float64) (float64, error) {
	if h <= 0 {
		return 0, fmt.Errorf("%w: h=%v", ErrBandwidth, h)
	}
	if len(readings) == 0 {
		return 0, ErrNoObservations
	}

	denom := 2 * h * h
	var weightSum, weightedValueSum float64
	for _, r := range readings {
		dx := lon - r.Longitude
		dy := lat - r.Latitude
		w := math.Exp(-(dx*dx + dy*dy) / denom)
		weightSum += w
		weightedValueSum += w * r.Value
	}

	if weightSum == 0 {
		return 0, fmt.Errorf("%w: (%.4f, %.4f) with h=%v over %d readings", ErrNoSupport, lon, lat, h, len(readings))
	}
	return weightedValueSum / weightSum, nil
}
