package reading

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/iot-core/internal/infrastructure/database"
	_ "github.com/nerrad567/iot-core/migrations"
)

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func newTestStore(t *testing.T, allowOutOfOrder bool) *Store {
	t.Helper()
	return NewStore(NewSQLiteRepository(openTestDB(t).DB), allowOutOfOrder)
}

func mustAppend(t *testing.T, s *Store, sensorID string, ts time.Time, value float64) SensorReading {
	t.Helper()
	r, err := s.Append(context.Background(), SensorReading{SensorID: sensorID, Timestamp: ts, Value: value, Unit: "C"})
	if err != nil {
		t.Fatalf("Append(%s, %v) error = %v", sensorID, ts, err)
	}
	return r
}

func TestStore_AppendAssignsIDs(t *testing.T) {
	s := newTestStore(t, false)

	a := mustAppend(t, s, "s1", t0, 1)
	b := mustAppend(t, s, "s1", t0.Add(time.Second), 2)

	if a.ID == 0 || b.ID <= a.ID {
		t.Errorf("IDs = %d, %d, want increasing non-zero", a.ID, b.ID)
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}

func TestStore_AppendValidation(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	tests := []struct {
		name    string
		reading SensorReading
	}{
		{"empty sensor", SensorReading{Timestamp: t0, Value: 1}},
		{"blank sensor", SensorReading{SensorID: "   ", Timestamp: t0, Value: 1}},
		{"NaN value", SensorReading{SensorID: "s1", Timestamp: t0, Value: math.NaN()}},
		{"infinite value", SensorReading{SensorID: "s1", Timestamp: t0, Value: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Append(ctx, tt.reading)
			if !errors.Is(err, ErrInvalidReading) {
				t.Errorf("Append() error = %v, want ErrInvalidReading", err)
			}
		})
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d after rejected appends, want 0", s.Count())
	}
}

func TestStore_ZeroTimestampIsStamped(t *testing.T) {
	s := newTestStore(t, false)
	before := time.Now().UTC()

	r, err := s.Append(context.Background(), SensorReading{SensorID: "s1", Value: 3})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if r.Timestamp.Before(before) || r.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want UTC time not before %v", r.Timestamp, before)
	}
}

func TestStore_OutOfOrderRejectedByDefault(t *testing.T) {
	s := newTestStore(t, false)
	mustAppend(t, s, "s1", t0, 1)

	_, err := s.Append(context.Background(), SensorReading{SensorID: "s1", Timestamp: t0.Add(-time.Second), Value: 2})
	if !errors.Is(err, ErrOutOfOrderReading) {
		t.Fatalf("Append() error = %v, want ErrOutOfOrderReading", err)
	}

	// Equal timestamps are in order.
	mustAppend(t, s, "s1", t0, 3)
	// Other sensors are independent.
	mustAppend(t, s, "s2", t0.Add(-time.Hour), 4)

	if s.Count() != 3 {
		t.Errorf("Count() = %d, want 3", s.Count())
	}
}

func TestStore_OutOfOrderAcceptedWhenEnabled(t *testing.T) {
	s := newTestStore(t, true)
	mustAppend(t, s, "s1", t0, 1)
	mustAppend(t, s, "s1", t0.Add(2*time.Second), 3)
	mustAppend(t, s, "s1", t0.Add(time.Second), 2)
	mustAppend(t, s, "s1", t0, 1.5) // after the existing t0 reading

	got := s.ReadAll("s1")
	want := []float64{1, 1.5, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("ReadAll() len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Value != w {
			t.Errorf("ReadAll()[%d].Value = %v, want %v", i, got[i].Value, w)
		}
	}
}

func TestStore_OldSnapshotUnaffected(t *testing.T) {
	s := newTestStore(t, true)
	mustAppend(t, s, "s1", t0, 1)
	mustAppend(t, s, "s1", t0.Add(2*time.Second), 3)

	old := s.Snapshot()
	mustAppend(t, s, "s1", t0.Add(time.Second), 2)
	mustAppend(t, s, "s1", t0.Add(3*time.Second), 4)

	got := old.ReadAll("s1")
	if len(got) != 2 || got[0].Value != 1 || got[1].Value != 3 {
		t.Errorf("old snapshot changed: %+v", got)
	}
	if s.Snapshot().Len() != 4 {
		t.Errorf("current Len() = %d, want 4", s.Snapshot().Len())
	}
}

type failingRepo struct{ Repository }

func (failingRepo) Insert(context.Context, *SensorReading) error {
	return errors.New("disk full")
}

func TestStore_FailedPersistLeavesStateIntact(t *testing.T) {
	s := NewStore(failingRepo{}, false)

	_, err := s.Append(context.Background(), SensorReading{SensorID: "s1", Timestamp: t0, Value: 1})
	if err == nil {
		t.Fatal("Append() error = nil, want persistence error")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestStore_LoadRebuildsFromRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteRepository(db.DB)

	first := NewStore(repo, false)
	mustAppend(t, first, "s1", t0, 1)
	mustAppend(t, first, "s2", t0.Add(time.Minute), 2)
	mustAppend(t, first, "s1", t0.Add(time.Hour), 3)

	second := NewStore(repo, false)
	if err := second.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if second.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", second.Count())
	}
	got := second.ReadAll("s1")
	if len(got) != 2 || !got[1].Timestamp.Equal(t0.Add(time.Hour)) {
		t.Errorf("ReadAll(s1) = %+v", got)
	}

	// Ordering checks survive a reload.
	_, err := second.Append(context.Background(), SensorReading{SensorID: "s1", Timestamp: t0, Value: 9})
	if !errors.Is(err, ErrOutOfOrderReading) {
		t.Errorf("Append() after reload error = %v, want ErrOutOfOrderReading", err)
	}
}

func TestStore_ReadAllOrdering(t *testing.T) {
	s := newTestStore(t, false)
	mustAppend(t, s, "s2", t0.Add(time.Second), 2)
	mustAppend(t, s, "s1", t0, 1)
	mustAppend(t, s, "s1", t0.Add(2*time.Second), 3)

	all := s.ReadAll("")
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("ReadAll(\"\") not ascending at %d: %+v", i, all)
		}
	}
	if len(s.ReadAll("missing")) != 0 {
		t.Error("ReadAll(missing) should be empty")
	}
}

func TestStore_Get(t *testing.T) {
	s := newTestStore(t, false)
	r := mustAppend(t, s, "s1", t0, 1)

	got, err := s.Get(r.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != r {
		t.Errorf("Get() = %+v, want %+v", got, r)
	}
	if _, err := s.Get(r.ID + 100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	const perSensor = 25
	sensors := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, id := range sensors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perSensor {
				_, err := s.Append(ctx, SensorReading{SensorID: id, Timestamp: t0.Add(time.Duration(i) * time.Second), Value: float64(i)})
				if err != nil {
					t.Errorf("Append(%s) error = %v", id, err)
					return
				}
			}
		}()
	}
	// Readers run alongside writers.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 50 {
			_ = s.Snapshot().Len()
			_, _ = s.Snapshot().Latest("")
		}
	}()
	wg.Wait()

	if s.Count() != perSensor*len(sensors) {
		t.Errorf("Count() = %d, want %d", s.Count(), perSensor*len(sensors))
	}
	for _, id := range sensors {
		if n := len(s.ReadAll(id)); n != perSensor {
			t.Errorf("ReadAll(%s) len = %d, want %d", id, n, perSensor)
		}
	}
}
