package reading

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func fixture() *Snapshot {
	return NewSnapshot([]SensorReading{
		{ID: 1, SensorID: "s1", Timestamp: t0, Value: 21.5, Unit: "°C"},
		{ID: 2, SensorID: "s2", Timestamp: t0.Add(time.Second), Value: 40, Unit: "%"},
		{ID: 3, SensorID: "s1", Timestamp: t0.Add(2 * time.Second), Value: 22, Unit: "°C"},
		{ID: 4, SensorID: "Light-1", Timestamp: t0.Add(3 * time.Second), Value: 99, Unit: "lux"},
		{ID: 5, SensorID: "s2", Timestamp: t0.Add(4 * time.Second), Value: 40, Unit: "%"},
	})
}

func ids(rs []SensorReading) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestLatest_Scenario(t *testing.T) {
	snap := NewSnapshot([]SensorReading{
		{ID: 1, SensorID: "s1", Timestamp: t0.Add(1 * time.Second), Value: 10},
		{ID: 2, SensorID: "s1", Timestamp: t0.Add(3 * time.Second), Value: 12},
		{ID: 3, SensorID: "s2", Timestamp: t0.Add(2 * time.Second), Value: 5},
	})

	got, err := snap.Latest("s1")
	if err != nil {
		t.Fatalf("Latest(s1) error = %v", err)
	}
	if len(got) != 1 || got[0].Value != 12 || !got[0].Timestamp.Equal(t0.Add(3*time.Second)) {
		t.Errorf("Latest(s1) = %+v, want value 12 at t=3", got)
	}

	all, err := snap.Latest("")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(all) != 2 || all[0].SensorID != "s1" || all[0].Value != 12 || all[1].SensorID != "s2" || all[1].Value != 5 {
		t.Errorf("Latest() = %+v, want s1=12, s2=5", all)
	}
}

func TestLatest_TieGoesToLaterArrival(t *testing.T) {
	snap := NewSnapshot([]SensorReading{
		{ID: 2, SensorID: "s1", Timestamp: t0, Value: 2},
		{ID: 1, SensorID: "s1", Timestamp: t0, Value: 1},
	})
	got, err := snap.Latest("s1")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got[0].ID != 2 {
		t.Errorf("Latest() ID = %d, want 2", got[0].ID)
	}
}

func TestLatest_NotFound(t *testing.T) {
	if _, err := fixture().Latest("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest(nope) error = %v, want ErrNotFound", err)
	}
	if _, err := NewSnapshot(nil).Latest(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() on empty store error = %v, want ErrNotFound", err)
	}
}

func TestLatest_IsMaxTimestamp(t *testing.T) {
	snap := fixture()
	latest, err := snap.Latest("")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	for _, l := range latest {
		for _, r := range snap.ReadAll(l.SensorID) {
			if r.Timestamp.After(l.Timestamp) {
				t.Errorf("sensor %s has reading %v after latest %v", l.SensorID, r.Timestamp, l.Timestamp)
			}
		}
	}
}

func TestSort(t *testing.T) {
	snap := fixture()

	tests := []struct {
		name     string
		criteria SortCriteria
		want     []int64
	}{
		{"default is timestamp asc", SortCriteria{}, []int64{1, 2, 3, 4, 5}},
		{"timestamp desc", SortCriteria{Field: SortByTimestamp, Direction: Descending}, []int64{5, 4, 3, 2, 1}},
		// 2 and 5 tie on value and keep store order.
		{"value asc stable", SortCriteria{Field: SortByValue, Direction: Ascending}, []int64{1, 3, 2, 5, 4}},
		{"value desc stable", SortCriteria{Field: SortByValue, Direction: Descending}, []int64{4, 2, 5, 3, 1}},
		{"id desc", SortCriteria{Field: SortByID, Direction: Descending}, []int64{5, 4, 3, 2, 1}},
		{"sensor asc", SortCriteria{Field: SortBySensorID}, []int64{4, 1, 3, 2, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := snap.Sort(tt.criteria)
			if err != nil {
				t.Fatalf("Sort() error = %v", err)
			}
			if !slices.Equal(ids(got), tt.want) {
				t.Errorf("Sort() ids = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestSort_InvalidKey(t *testing.T) {
	snap := fixture()
	for _, c := range []SortCriteria{
		{Field: "colour"},
		{Field: SortByValue, Direction: "sideways"},
	} {
		if _, err := snap.Sort(c); !errors.Is(err, ErrInvalidSortKey) {
			t.Errorf("Sort(%+v) error = %v, want ErrInvalidSortKey", c, err)
		}
	}
}

func TestSort_DoesNotMutateSnapshot(t *testing.T) {
	snap := fixture()
	if _, err := snap.Sort(SortCriteria{Field: SortByValue, Direction: Descending}); err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if !slices.Equal(ids(snap.ReadAll("")), []int64{1, 2, 3, 4, 5}) {
		t.Errorf("store order changed: %v", ids(snap.ReadAll("")))
	}
}

func TestParseSort(t *testing.T) {
	fields := map[string]SortField{"time": SortByTimestamp, "VALUE": SortByValue, "": SortByTimestamp, "sensor": SortBySensorID}
	for in, want := range fields {
		got, err := ParseSortField(in)
		if err != nil || got != want {
			t.Errorf("ParseSortField(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseSortField("temperature"); !errors.Is(err, ErrInvalidSortKey) {
		t.Errorf("ParseSortField(temperature) error = %v, want ErrInvalidSortKey", err)
	}

	if d, err := ParseSortDirection("DESC"); err != nil || d != Descending {
		t.Errorf("ParseSortDirection(DESC) = %q, %v", d, err)
	}
	if _, err := ParseSortDirection("up"); !errors.Is(err, ErrInvalidSortKey) {
		t.Errorf("ParseSortDirection(up) error = %v, want ErrInvalidSortKey", err)
	}
}

func TestSearch(t *testing.T) {
	snap := fixture()

	tests := []struct {
		name  string
		query SearchQuery
		want  []int64
	}{
		{"empty query returns everything", SearchQuery{}, []int64{1, 2, 3, 4, 5}},
		{"sensor substring", SearchQuery{Text: "s1"}, []int64{1, 3}},
		{"case insensitive", SearchQuery{Text: "LIGHT"}, []int64{4}},
		{"unit match", SearchQuery{Text: "lux"}, []int64{4}},
		{"restricted fields", SearchQuery{Text: "lux", Fields: []SearchField{SearchSensorID}}, nil},
		{"exact", SearchQuery{Text: "s", Exact: true}, nil},
		{"exact hit", SearchQuery{Text: "S2", Exact: true}, []int64{2, 5}},
		{"value range", SearchQuery{MinValue: ptr(22.0), MaxValue: ptr(40.0)}, []int64{2, 3, 5}},
		{"time range", SearchQuery{From: ptr(t0.Add(time.Second)), To: ptr(t0.Add(3 * time.Second))}, []int64{2, 3, 4}},
		{"timestamp text", SearchQuery{Text: "2026-10-19 12:00:02", Fields: []SearchField{SearchTimestamp}}, []int64{3}},
		{"value text", SearchQuery{Text: "21.5", Fields: []SearchField{SearchValue}}, []int64{1}},
		{"text and range", SearchQuery{Text: "s", MaxValue: ptr(30.0)}, []int64{1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := snap.Search(tt.query)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if got == nil {
				t.Fatal("Search() returned nil slice, want non-nil")
			}
			if !slices.Equal(ids(got), tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Errorf("Search() ids = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestSearch_Invalid(t *testing.T) {
	snap := fixture()
	for _, q := range []SearchQuery{
		{Fields: []SearchField{"colour"}},
		{MinValue: ptr(5.0), MaxValue: ptr(1.0)},
		{From: ptr(t0.Add(time.Hour)), To: ptr(t0)},
	} {
		if _, err := snap.Search(q); !errors.Is(err, ErrInvalidSearch) {
			t.Errorf("Search(%+v) error = %v, want ErrInvalidSearch", q, err)
		}
	}
}

func TestQueryEngine_Idempotent(t *testing.T) {
	s := newTestStore(t, false)
	mustAppend(t, s, "s1", t0, 1)
	mustAppend(t, s, "s2", t0.Add(time.Second), 2)
	e := NewQueryEngine(s)

	a, err := e.Sort(SortCriteria{Field: SortByValue, Direction: Descending})
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	b, _ := e.Sort(SortCriteria{Field: SortByValue, Direction: Descending})
	if !slices.Equal(a, b) {
		t.Errorf("repeated Sort differs: %v vs %v", a, b)
	}

	l1, _ := e.Latest("")
	l2, _ := e.Latest("")
	if !slices.Equal(l1, l2) {
		t.Errorf("repeated Latest differs")
	}

	mustAppend(t, s, "s1", t0.Add(time.Hour), 7)
	l3, err := e.Latest("s1")
	if err != nil || l3[0].Value != 7 {
		t.Errorf("Latest(s1) after append = %+v, %v; want value 7", l3, err)
	}
}
