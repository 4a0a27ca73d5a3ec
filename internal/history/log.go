package history

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
)

// Logger defines the logging interface used by the command log.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Snapshot is an immutable, ordered view of the command log.
type Snapshot struct {
	entries []Entry // ordered by issued_at, then Seq
}

// NewSnapshot builds a snapshot from entries in any order.
func NewSnapshot(entries []Entry) *Snapshot {
	es := slices.Clone(entries)
	slices.SortStableFunc(es, compareEntries)
	return &Snapshot{entries: es}
}

// Len returns the number of commands.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the log in ascending issued_at order.
func (s *Snapshot) Entries() []Entry {
	return slices.Clone(s.entries)
}

// Get returns the entry for a command ID.
func (s *Snapshot) Get(commandID string) (Entry, error) {
	if i := s.index(commandID); i >= 0 {
		return s.entries[i], nil
	}
	return Entry{}, fmt.Errorf("%w: command %q", ErrNotFound, commandID)
}

// index scans from the newest entry, where lookups usually land.
func (s *Snapshot) index(commandID string) int {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Command.ID == commandID {
			return i
		}
	}
	return -1
}

// Log is the append-only record of device commands and their outcomes.
//
// Thread Safety:
//   - Appends and outcome recording are serialised by a single mutex.
//   - Readers load the current Snapshot atomically.
type Log struct {
	repo   Repository
	logger Logger

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// NewLog creates a command log backed by repo.
func NewLog(repo Repository) *Log {
	l := &Log{repo: repo, logger: noopLogger{}}
	l.snap.Store(&Snapshot{})
	return l
}

// SetLogger sets the logger for the command log.
func (l *Log) SetLogger(logger Logger) {
	l.logger = logger
}

// Load replaces the in-memory view with the persisted log.
func (l *Log) Load(ctx context.Context) error {
	entries, err := l.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading command log: %w", err)
	}

	l.mu.Lock()
	l.snap.Store(NewSnapshot(entries))
	l.mu.Unlock()

	l.logger.Info("command log loaded", "commands", len(entries))
	return nil
}

// Snapshot returns the current immutable view.
func (l *Log) Snapshot() *Snapshot {
	return l.snap.Load()
}

// ReadAll returns every entry in ascending issued_at order.
func (l *Log) ReadAll() []Entry {
	return l.Snapshot().Entries()
}

// Get returns the entry for commandID.
func (l *Log) Get(commandID string) (Entry, error) {
	return l.Snapshot().Get(commandID)
}

// Count returns the number of commands in the log.
func (l *Log) Count() int {
	return l.Snapshot().Len()
}

// Append stores a command and, optionally, its outcome.
//
// An outcome must reference the command being appended; an outcome with an
// empty CommandID is attached to cmd.
func (l *Log) Append(ctx context.Context, cmd DeviceCommand, action *HistoryAction) (Entry, error) {
	cmd.IssuedAt = cmd.IssuedAt.UTC()
	if err := cmd.validate(); err != nil {
		return Entry{}, err
	}
	if action != nil {
		a := *action
		if a.CommandID == "" {
			a.CommandID = cmd.ID
		}
		if a.CommandID != cmd.ID {
			return Entry{}, fmt.Errorf("%w: %q", ErrOrphanHistory, a.CommandID)
		}
		a.CompletedAt = a.CompletedAt.UTC()
		if err := a.validate(); err != nil {
			return Entry{}, err
		}
		action = &a
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.Snapshot()
	if cur.index(cmd.ID) >= 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrCommandExists, cmd.ID)
	}

	seq, err := l.repo.InsertCommand(ctx, cmd, action)
	if err != nil {
		return Entry{}, fmt.Errorf("persisting command: %w", err)
	}

	e := Entry{Command: cmd, History: action, Seq: seq}
	l.snap.Store(&Snapshot{entries: insertEntry(cur.entries, e)})

	l.logger.Debug("command logged", "command_id", cmd.ID, "device_id", cmd.DeviceID, "action", cmd.Action)
	return e, nil
}

// Record attaches the outcome of a command that was appended without one.
// Each command receives at most one outcome.
func (l *Log) Record(ctx context.Context, action HistoryAction) (Entry, error) {
	action.CompletedAt = action.CompletedAt.UTC()
	if err := action.validate(); err != nil {
		return Entry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.Snapshot()
	i := cur.index(action.CommandID)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrOrphanHistory, action.CommandID)
	}
	if cur.entries[i].History != nil {
		return Entry{}, fmt.Errorf("%w: %q is %s", ErrHistoryExists, action.CommandID, cur.entries[i].History.Result)
	}

	if err := l.repo.InsertHistory(ctx, action); err != nil {
		return Entry{}, fmt.Errorf("persisting outcome: %w", err)
	}

	// Older snapshots keep their own copy of the entry.
	entries := slices.Clone(cur.entries)
	entries[i].History = &action
	l.snap.Store(&Snapshot{entries: entries})

	l.logger.Debug("outcome recorded", "command_id", action.CommandID, "result", action.Result)
	return entries[i], nil
}

// insertEntry returns entries with e in order. In-order appends share the
// backing array; older snapshots never read past their own length.
func insertEntry(entries []Entry, e Entry) []Entry {
	n := len(entries)
	if n == 0 || compareEntries(entries[n-1], e) <= 0 {
		return append(entries, e)
	}
	i := sort.Search(n, func(i int) bool { return compareEntries(entries[i], e) > 0 })
	return slices.Insert(slices.Clone(entries), i, e)
}
