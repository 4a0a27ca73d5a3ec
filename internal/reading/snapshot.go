package reading

import (
	"iter"
	"maps"
	"slices"
	"sync"
)

// Snapshot is an immutable view of the store at one point in time.
//
// Queries run against a snapshot and never observe a partially applied
// append. Snapshots must be used through a pointer.
type Snapshot struct {
	bySensor map[string][]SensorReading // each slice in store order
	count    int

	allOnce sync.Once
	all     []SensorReading
}

func emptySnapshot() *Snapshot {
	return &Snapshot{bySensor: map[string][]SensorReading{}}
}

// NewSnapshot builds a snapshot from readings in any order. It is used to
// rebuild state from the repository and to drive the query engines in tests.
func NewSnapshot(readings []SensorReading) *Snapshot {
	s := emptySnapshot()
	for _, r := range readings {
		s.bySensor[r.SensorID] = append(s.bySensor[r.SensorID], r)
	}
	for id, rs := range s.bySensor {
		slices.SortStableFunc(rs, compareStoreOrder)
		s.bySensor[id] = rs
	}
	s.count = len(readings)
	return s
}

// withSensor returns a copy of s with the given sensor's readings replaced.
// Other sensors' slices are shared, which is safe because they are never
// written through.
func (s *Snapshot) withSensor(sensorID string, rs []SensorReading) *Snapshot {
	next := &Snapshot{
		bySensor: maps.Clone(s.bySensor),
		count:    s.count - len(s.bySensor[sensorID]) + len(rs),
	}
	next.bySensor[sensorID] = rs
	return next
}

// Len returns the number of readings in the snapshot.
func (s *Snapshot) Len() int {
	return s.count
}

// Sensors returns the sensor IDs that have readings, sorted.
func (s *Snapshot) Sensors() []string {
	return slices.Sorted(maps.Keys(s.bySensor))
}

// ReadAll returns a sensor's readings in ascending timestamp order.
// An empty sensorID returns every reading in store order.
func (s *Snapshot) ReadAll(sensorID string) []SensorReading {
	if sensorID == "" {
		return slices.Clone(s.sorted())
	}
	return slices.Clone(s.bySensor[sensorID])
}

// All yields every reading in store order without copying.
func (s *Snapshot) All() iter.Seq[SensorReading] {
	return slices.Values(s.sorted())
}

// Get returns the reading with the given ID.
func (s *Snapshot) Get(id int64) (SensorReading, error) {
	for r := range s.All() {
		if r.ID == id {
			return r, nil
		}
	}
	return SensorReading{}, ErrNotFound
}

// sorted merges every sensor into store order once per snapshot.
func (s *Snapshot) sorted() []SensorReading {
	s.allOnce.Do(func() {
		all := make([]SensorReading, 0, s.count)
		for _, rs := range s.bySensor {
			all = append(all, rs...)
		}
		slices.SortFunc(all, compareStoreOrder)
		s.all = all
	})
	return s.all
}
