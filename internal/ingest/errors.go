package ingest

import "errors"

var (
	// ErrInvalidPayload is returned for a sensor message that is not a
	// reading or a multi-measure object.
	ErrInvalidPayload = errors.New("ingest: invalid payload")

	// ErrUnknownTopic is returned for a message outside the sensor topic tree.
	ErrUnknownTopic = errors.New("ingest: not a sensor topic")
)
