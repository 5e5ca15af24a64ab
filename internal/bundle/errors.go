package bundle

import "errors"

// Validation errors for result bundles.
var (
	// ErrEmpty indicates a bundle with no series at all.
	ErrEmpty = errors.New("bundle: no series")

	// ErrMalformed indicates the payload is not a series name to number array object.
	ErrMalformed = errors.New("bundle: malformed payload")

	// ErrMissingSeries indicates a required series is absent.
	ErrMissingSeries = errors.New("bundle: missing series")

	// ErrLengthMismatch indicates series of unequal length.
	ErrLengthMismatch = errors.New("bundle: series length mismatch")

	// ErrHourNotMonotonic indicates the hour series decreases somewhere.
	ErrHourNotMonotonic = errors.New("bundle: hour series not monotonic")

	// ErrIndexRange indicates a step index outside the bundle.
	ErrIndexRange = errors.New("bundle: index out of range")
)

// SeriesError ties a validation failure to the offending series.
type SeriesError struct {
	Name string
	Err  error
}

func (e *SeriesError) Error() string {
	return e.Err.Error() + " (" + e.Name + ")"
}

func (e *SeriesError) Unwrap() error {
	return e.Err
}
