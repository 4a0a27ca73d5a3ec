package history

import (
	"fmt"
	"strings"
	"time"
)

// SnapshotSource provides the current command log snapshot. *Log implements it.
type SnapshotSource interface {
	Snapshot() *Snapshot
}

// Filter selects log entries. Unset fields match everything; set fields
// are ANDed.
type Filter struct {
	// Inclusive bounds on issued_at.
	From *time.Time
	To   *time.Time

	DeviceID string
	// Action matches case-insensitively ("ON" matches "on").
	Action string
	// Result only matches entries that have an outcome.
	Result Result
}

func (f Filter) validate() error {
	if f.Result != "" && !f.Result.Valid() {
		return fmt.Errorf("%w: unknown result %q", ErrInvalidFilter, f.Result)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("%w: from is after to", ErrInvalidFilter)
	}
	return nil
}

func (f Filter) matches(e Entry) bool {
	c := e.Command
	if f.From != nil && c.IssuedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && c.IssuedAt.After(*f.To) {
		return false
	}
	if f.DeviceID != "" && c.DeviceID != f.DeviceID {
		return false
	}
	if f.Action != "" && !strings.EqualFold(c.Action, f.Action) {
		return false
	}
	if f.Result != "" && (e.History == nil || e.History.Result != f.Result) {
		return false
	}
	return true
}

// QueryEngine answers filter and search queries over the command log.
// Results are always in ascending issued_at order.
type QueryEngine struct {
	src SnapshotSource
}

// NewQueryEngine creates a history query engine over src.
func NewQueryEngine(src SnapshotSource) *QueryEngine {
	return &QueryEngine{src: src}
}

// Filter returns entries matching f.
func (e *QueryEngine) Filter(f Filter) ([]Entry, error) {
	return e.src.Snapshot().Filter(f)
}

// Search returns entries whose action, device ID, outcome detail or
// formatted issued_at contain query, ignoring case.
func (e *QueryEngine) Search(query string) []Entry {
	return e.src.Snapshot().Search(query)
}

// Filter returns entries matching f.
func (s *Snapshot) Filter(f Filter) ([]Entry, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	out := []Entry{}
	for _, e := range s.entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Search returns entries containing query in any searchable field.
// An empty query returns the whole log.
func (s *Snapshot) Search(query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []Entry{}
	for _, e := range s.entries {
		if q == "" || searchable(e, q) {
			out = append(out, e)
		}
	}
	return out
}

func searchable(e Entry, q string) bool {
	fields := []string{
		e.Command.Action,
		e.Command.DeviceID,
		e.Command.IssuedAt.UTC().Format(TimeLayout),
	}
	if e.History != nil {
		fields = append(fields, e.History.Detail)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
