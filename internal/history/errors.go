package history

import "errors"

// Domain errors for the history package.
var (
	// ErrNotFound is returned when a command ID does not exist.
	ErrNotFound = errors.New("history: not found")

	// ErrInvalidCommand is returned when a command entry is malformed.
	ErrInvalidCommand = errors.New("history: invalid command")

	// ErrInvalidHistory is returned when an outcome is malformed.
	ErrInvalidHistory = errors.New("history: invalid outcome")

	// ErrCommandExists is returned when appending a command ID twice.
	ErrCommandExists = errors.New("history: command already exists")

	// ErrOrphanHistory is returned when an outcome references a command
	// that is not in the log.
	ErrOrphanHistory = errors.New("history: outcome references unknown command")

	// ErrHistoryExists is returned when a command already has an outcome.
	ErrHistoryExists = errors.New("history: outcome already recorded")

	// ErrInvalidFilter is returned when filter parameters are invalid.
	ErrInvalidFilter = errors.New("history: invalid filter")
)
