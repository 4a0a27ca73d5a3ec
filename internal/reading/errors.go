package reading

import "errors"

// Domain errors for the reading package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, reading.ErrNotFound) {
//	    // sensor has no readings
//	}
var (
	// ErrNotFound is returned when a sensor (or the whole store) has no readings,
	// or a reading ID does not exist.
	ErrNotFound = errors.New("reading: not found")

	// ErrInvalidReading is returned when a reading fails validation.
	ErrInvalidReading = errors.New("reading: invalid")

	// ErrOutOfOrderReading is returned when a reading is older than the
	// sensor's latest and out-of-order ingestion is disabled.
	ErrOutOfOrderReading = errors.New("reading: out of order")

	// ErrInvalidSortKey is returned for an unknown sort field or direction.
	ErrInvalidSortKey = errors.New("reading: invalid sort key")

	// ErrInvalidBucketing is returned when chart bucketing parameters are invalid.
	ErrInvalidBucketing = errors.New("reading: invalid bucketing")

	// ErrInvalidSearch is returned when a search query is malformed.
	ErrInvalidSearch = errors.New("reading: invalid search")
)
