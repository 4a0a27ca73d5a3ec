package reading

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SnapshotSource provides the current snapshot. *Store implements it.
type SnapshotSource interface {
	Snapshot() *Snapshot
}

// QueryEngine answers latest, chart, sort and search queries.
//
// Each call loads one snapshot and is a pure function of it, so repeating a
// query with no intervening append returns the same result.
type QueryEngine struct {
	src SnapshotSource
}

// NewQueryEngine creates a query engine over src.
func NewQueryEngine(src SnapshotSource) *QueryEngine {
	return &QueryEngine{src: src}
}

// Latest returns the most recent reading of one sensor, or of every sensor
// (sorted by sensor ID) when sensorID is empty.
func (e *QueryEngine) Latest(sensorID string) ([]SensorReading, error) {
	return e.src.Snapshot().Latest(sensorID)
}

// Chart groups one sensor's readings into fixed-width time buckets.
func (e *QueryEngine) Chart(sensorID string, b Bucketing) (iter.Seq[Bucket], error) {
	return e.src.Snapshot().Chart(sensorID, b)
}

// Sort returns all readings ordered by the criteria.
func (e *QueryEngine) Sort(c SortCriteria) ([]SensorReading, error) {
	return e.src.Snapshot().Sort(c)
}

// Search returns readings matching q in ascending timestamp order.
func (e *QueryEngine) Search(q SearchQuery) ([]SensorReading, error) {
	return e.src.Snapshot().Search(q)
}

// Latest returns the reading with the maximum timestamp per sensor.
// Ties on timestamp go to the later arrival.
func (s *Snapshot) Latest(sensorID string) ([]SensorReading, error) {
	if sensorID != "" {
		rs := s.bySensor[sensorID]
		if len(rs) == 0 {
			return nil, fmt.Errorf("%w: sensor %q has no readings", ErrNotFound, sensorID)
		}
		return []SensorReading{rs[len(rs)-1]}, nil
	}

	if s.count == 0 {
		return nil, fmt.Errorf("%w: no readings stored", ErrNotFound)
	}
	sensors := s.Sensors()
	out := make([]SensorReading, 0, len(sensors))
	for _, id := range sensors {
		rs := s.bySensor[id]
		out = append(out, rs[len(rs)-1])
	}
	return out, nil
}

// SortField names the attribute readings are sorted by.
type SortField string

// Sort fields.
const (
	SortByTimestamp SortField = "timestamp"
	SortByValue     SortField = "value"
	SortByID        SortField = "id"
	SortBySensorID  SortField = "sensor_id"
)

// SortDirection is ascending or descending.
type SortDirection string

// Sort directions.
const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// SortCriteria selects the sort key and direction. The zero value sorts by
// timestamp ascending.
type SortCriteria struct {
	Field     SortField
	Direction SortDirection
}

// ParseSortField maps a user-supplied attribute name to a SortField.
// "time" is accepted for timestamp and "sensor" for sensor_id.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "timestamp", "time":
		return SortByTimestamp, nil
	case "value":
		return SortByValue, nil
	case "id":
		return SortByID, nil
	case "sensor_id", "sensor":
		return SortBySensorID, nil
	}
	return "", fmt.Errorf("%w: unknown field %q", ErrInvalidSortKey, s)
}

// ParseSortDirection maps "asc"/"desc" (any case) to a SortDirection.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidSortKey, s)
}

func (c SortCriteria) comparator() (func(a, b SensorReading) int, error) {
	var f func(a, b SensorReading) int
	switch c.Field {
	case SortByTimestamp, "":
		f = func(a, b SensorReading) int { return a.Timestamp.Compare(b.Timestamp) }
	case SortByValue:
		f = func(a, b SensorReading) int { return cmp.Compare(a.Value, b.Value) }
	case SortByID:
		f = func(a, b SensorReading) int { return cmp.Compare(a.ID, b.ID) }
	case SortBySensorID:
		f = func(a, b SensorReading) int { return strings.Compare(a.SensorID, b.SensorID) }
	default:
		return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidSortKey, c.Field)
	}

	switch c.Direction {
	case Ascending, "":
		return f, nil
	case Descending:
		return func(a, b SensorReading) int { return f(b, a) }, nil
	}
	return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidSortKey, c.Direction)
}

// Sort returns every reading ordered by the criteria. The sort is stable:
// readings with equal keys keep store order.
func (s *Snapshot) Sort(c SortCriteria) ([]SensorReading, error) {
	less, err := c.comparator()
	if err != nil {
		return nil, err
	}
	out := slices.Clone(s.sorted())
	slices.SortStableFunc(out, less)
	return out, nil
}

// SearchField names a reading attribute that free text is matched against.
type SearchField string

// Search fields.
const (
	SearchSensorID  SearchField = "sensor_id"
	SearchUnit      SearchField = "unit"
	SearchTimestamp SearchField = "timestamp"
	SearchValue     SearchField = "value"
)

// DefaultSearchFields are used when a query names none.
var DefaultSearchFields = []SearchField{SearchSensorID, SearchUnit}

// ParseSearchField maps a user-supplied field name to a SearchField.
func ParseSearchField(s string) (SearchField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sensor_id", "sensor":
		return SearchSensorID, nil
	case "unit":
		return SearchUnit, nil
	case "timestamp", "time":
		return SearchTimestamp, nil
	case "value":
		return SearchValue, nil
	}
	return "", fmt.Errorf("%w: unknown field %q", ErrInvalidSearch, s)
}

// SearchQuery selects readings by free text and optional ranges.
// All set constraints must hold. The zero value matches everything.
type SearchQuery struct {
	// Text is matched case-insensitively as a substring, or as a whole
	// value when Exact is set, against any of Fields.
	Text   string
	Fields []SearchField
	Exact  bool

	// Inclusive value bounds.
	MinValue *float64
	MaxValue *float64

	// Inclusive timestamp bounds.
	From *time.Time
	To   *time.Time
}

func (q SearchQuery) validate() error {
	for _, f := range q.Fields {
		switch f {
		case SearchSensorID, SearchUnit, SearchTimestamp, SearchValue:
		default:
			return fmt.Errorf("%w: unknown field %q", ErrInvalidSearch, f)
		}
	}
	if q.MinValue != nil && q.MaxValue != nil && *q.MinValue > *q.MaxValue {
		return fmt.Errorf("%w: min_value greater than max_value", ErrInvalidSearch)
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return fmt.Errorf("%w: from is after to", ErrInvalidSearch)
	}
	return nil
}

// Search returns readings matching q in ascending timestamp order.
func (s *Snapshot) Search(q SearchQuery) ([]SensorReading, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	match := q.matcher()
	var out []SensorReading
	for r := range s.All() {
		if match(r) {
			out = append(out, r)
		}
	}
	if out == nil {
		out = []SensorReading{}
	}
	return out, nil
}

func (q SearchQuery) matcher() func(SensorReading) bool {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	fields := q.Fields
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}

	textMatches := func(candidate string) bool {
		candidate = strings.ToLower(candidate)
		if q.Exact {
			return candidate == text
		}
		return strings.Contains(candidate, text)
	}

	return func(r SensorReading) bool {
		if q.MinValue != nil && r.Value < *q.MinValue {
			return false
		}
		if q.MaxValue != nil && r.Value > *q.MaxValue {
			return false
		}
		if q.From != nil && r.Timestamp.Before(*q.From) {
			return false
		}
		if q.To != nil && r.Timestamp.After(*q.To) {
			return false
		}
		if text == "" {
			return true
		}
		for _, f := range fields {
			if textMatches(fieldText(r, f)) {
				return true
			}
		}
		return false
	}
}

func fieldText(r SensorReading, f SearchField) string {
	switch f {
	case SearchSensorID:
		return r.SensorID
	case SearchUnit:
		return r.Unit
	case SearchTimestamp:
		return r.Timestamp.UTC().Format(TimeLayout)
	case SearchValue:
		return strconv.FormatFloat(r.Value, 'f', -1, 64)
	}
	return ""
}
