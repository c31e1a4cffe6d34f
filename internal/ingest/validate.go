package ingest

import (
	"encoding/json"
	"math"

	"github.com/hollisb/airgrid/internal/models"
)

const (
	FlagValueNotFinite  = "value_not_finite"
	FlagValueNegative   = "value_negative"
	FlagLatOutOfRange   = "lat_out_of_range"
	FlagLonOutOfRange   = "lon_out_of_range"
	FlagCoordsNotFinite = "coords_not_finite"
)

// ValidateReading flags suspect readings without rejecting them; the smoother
// takes readings as-is, so flags are the only record of quality issues.
func ValidateReading(r *models.Reading) []string {
	var flags []string

	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		flags = append(flags, FlagValueNotFinite)
	} else if r.Value < 0 {
		flags = append(flags, FlagValueNegative)
	}

	if math.IsNaN(r.Latitude) || math.IsInf(r.Latitude, 0) ||
		math.IsNaN(r.Longitude) || math.IsInf(r.Longitude, 0) {
		flags = append(flags, FlagCoordsNotFinite)
		return flags
	}

	if r.Latitude < -90 || r.Latitude > 90 {
		flags = append(flags, FlagLatOutOfRange)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		flags = append(flags, FlagLonOutOfRange)
	}

	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
