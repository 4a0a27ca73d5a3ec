package reading

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the logging interface used by the Store.
// This allows the store to log without depending on a specific implementation.
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

// Store is the append-only, time-ordered repository of sensor readings.
//
// Thread Safety:
//   - Appends for the same sensor are serialised; different sensors proceed
//     concurrently up to the short publish step.
//   - Readers load the current Snapshot atomically and never block writers.
type Store struct {
	repo            Repository
	allowOutOfOrder bool
	logger          Logger

	sensorLocks sync.Map // sensor ID -> *sync.Mutex
	publishMu   sync.Mutex
	snap        atomic.Pointer[Snapshot]
}

// NewStore creates a store backed by repo. Call Load before serving traffic
// to rebuild state from previously persisted readings.
//
// When allowOutOfOrder is false, a reading older than its sensor's latest
// is rejected with ErrOutOfOrderReading. When true it is accepted and
// placed in timestamp order after any readings with the same timestamp.
func NewStore(repo Repository, allowOutOfOrder bool) *Store {
	s := &Store{
		repo:            repo,
		allowOutOfOrder: allowOutOfOrder,
		logger:          noopLogger{},
	}
	s.snap.Store(emptySnapshot())
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load replaces the in-memory view with everything in the repository.
func (s *Store) Load(ctx context.Context) error {
	readings, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading readings: %w", err)
	}

	s.publishMu.Lock()
	s.snap.Store(NewSnapshot(readings))
	s.publishMu.Unlock()

	s.logger.Info("reading store loaded", "readings", len(readings))
	return nil
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// ReadAll returns a sensor's readings (or all readings for "") in
// ascending timestamp order.
func (s *Store) ReadAll(sensorID string) []SensorReading {
	return s.Snapshot().ReadAll(sensorID)
}

// Get returns one reading by ID.
func (s *Store) Get(id int64) (SensorReading, error) {
	return s.Snapshot().Get(id)
}

// Count returns the number of stored readings.
func (s *Store) Count() int {
	return s.Snapshot().Len()
}

// Append validates, persists and publishes a reading, returning it with its
// assigned ID. A zero timestamp is stamped with the current time.
//
// If persistence fails the in-memory view is left unchanged.
func (s *Store) Append(ctx context.Context, r SensorReading) (SensorReading, error) {
	r.SensorID = strings.TrimSpace(r.SensorID)
	if err := validate(r); err != nil {
		return SensorReading{}, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.Timestamp = r.Timestamp.UTC()
	r.ID = 0

	mu := s.sensorLock(r.SensorID)
	mu.Lock()
	defer mu.Unlock()

	// Only this goroutine can change this sensor's slice while mu is held.
	current := s.Snapshot().bySensor[r.SensorID]
	if n := len(current); n > 0 && r.Timestamp.Before(current[n-1].Timestamp) {
		if !s.allowOutOfOrder {
			return SensorReading{}, fmt.Errorf("%w: %s at %s is older than latest %s",
				ErrOutOfOrderReading, r.SensorID,
				r.Timestamp.Format(time.RFC3339Nano),
				current[n-1].Timestamp.Format(time.RFC3339Nano))
		}
		s.logger.Debug("accepting out-of-order reading", "sensor_id", r.SensorID, "timestamp", r.Timestamp)
	}

	if err := s.repo.Insert(ctx, &r); err != nil {
		return SensorReading{}, fmt.Errorf("persisting reading: %w", err)
	}

	s.publishMu.Lock()
	base := s.Snapshot()
	s.snap.Store(base.withSensor(r.SensorID, insertOrdered(base.bySensor[r.SensorID], r)))
	s.publishMu.Unlock()

	return r, nil
}

// insertOrdered returns rs with r added in store order. The common in-order
// case appends; readers holding the old slice never see past its length.
func insertOrdered(rs []SensorReading, r SensorReading) []SensorReading {
	n := len(rs)
	if n == 0 || !r.Timestamp.Before(rs[n-1].Timestamp) {
		return append(rs, r)
	}
	// First position whose timestamp is strictly after r's.
	i := sort.Search(n, func(i int) bool { return rs[i].Timestamp.After(r.Timestamp) })
	return slices.Insert(slices.Clone(rs), i, r)
}

func (s *Store) sensorLock(sensorID string) *sync.Mutex {
	if mu, ok := s.sensorLocks.Load(sensorID); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := s.sensorLocks.LoadOrStore(sensorID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func validate(r SensorReading) error {
	if r.SensorID == "" {
		return fmt.Errorf("%w: sensor_id is required", ErrInvalidReading)
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return fmt.Errorf("%w: value must be finite", ErrInvalidReading)
	}
	return nil
}
