package history

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the human form of issuedAt matched by Search.
const TimeLayout = "2006-01-02 15:04:05"

// Result is the outcome of a dispatched command.
type Result string

// Command outcomes.
const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPending Result = "pending"
)

// Valid reports whether r is a known result.
func (r Result) Valid() bool {
	switch r {
	case ResultSuccess, ResultFailure, ResultPending:
		return true
	}
	return false
}

// ParseResult maps user input (any case) to a Result.
func ParseResult(s string) (Result, error) {
	r := Result(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown result %q", ErrInvalidFilter, s)
	}
	return r, nil
}

// DeviceCommand is a request to change a device's state. Immutable once logged.
type DeviceCommand struct {
	ID       string    `json:"command_id"`
	DeviceID string    `json:"device_id"`
	Action   string    `json:"action"`
	IssuedAt time.Time `json:"issued_at"`
	IssuedBy string    `json:"issued_by,omitempty"`
}

func (c DeviceCommand) validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: command_id is required", ErrInvalidCommand)
	case c.DeviceID == "":
		return fmt.Errorf("%w: device_id is required", ErrInvalidCommand)
	case c.Action == "":
		return fmt.Errorf("%w: action is required", ErrInvalidCommand)
	case c.IssuedAt.IsZero():
		return fmt.Errorf("%w: issued_at is required", ErrInvalidCommand)
	}
	return nil
}

// HistoryAction records what happened to one command.
type HistoryAction struct {
	CommandID   string    `json:"command_id"`
	Result      Result    `json:"result"`
	CompletedAt time.Time `json:"completed_at"`
	Detail      string    `json:"detail,omitempty"`
}

func (h HistoryAction) validate() error {
	if h.CommandID == "" {
		return fmt.Errorf("%w: command_id is required", ErrInvalidHistory)
	}
	if !h.Result.Valid() {
		return fmt.Errorf("%w: unknown result %q", ErrInvalidHistory, h.Result)
	}
	if h.CompletedAt.IsZero() {
		return fmt.Errorf("%w: completed_at is required", ErrInvalidHistory)
	}
	return nil
}

// Entry is one row of the command log: a command and, once known, its outcome.
type Entry struct {
	Command DeviceCommand  `json:"command"`
	History *HistoryAction `json:"history,omitempty"`

	// Seq is the insertion sequence; it orders commands issued at the same instant.
	Seq int64 `json:"-"`
}

func compareEntries(a, b Entry) int {
	if c := a.Command.IssuedAt.Compare(b.Command.IssuedAt); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}
