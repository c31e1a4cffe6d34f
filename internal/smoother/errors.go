package smoother

import "errors"

var (
	// ErrNoObservations is returned when a smoothing query is given an empty
	// observation set.
	ErrNoObservations = errors.New("smoother: no observations")

	// ErrNoSupport is returned when every kernel weight underflows to zero,
	// i.e. all observations are too far from the query point for the given
	// bandwidth.
	ErrNoSupport = errors.New("smoother: no support at query point")

	// ErrBandwidth is returned for a non-positive bandwidth.
	ErrBandwidth = errors.New("smoother: bandwidth must be positive")

	// ErrSelectionFailed is returned when no candidate bandwidth produced a
	// defined cross-validation error.
	ErrSelectionFailed = errors.New("smoother: bandwidth selection failed")
)
