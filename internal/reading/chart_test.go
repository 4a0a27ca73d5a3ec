package reading

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func chartFixture() *Snapshot {
	// Minute buckets: 12:00 -> {10, 20}, 12:01 -> {30}, 12:03 -> {5, 15, 40}.
	return NewSnapshot([]SensorReading{
		{ID: 1, SensorID: "s1", Timestamp: t0.Add(5 * time.Second), Value: 10},
		{ID: 2, SensorID: "s1", Timestamp: t0.Add(50 * time.Second), Value: 20},
		{ID: 3, SensorID: "s1", Timestamp: t0.Add(70 * time.Second), Value: 30},
		{ID: 4, SensorID: "s1", Timestamp: t0.Add(180 * time.Second), Value: 5},
		{ID: 5, SensorID: "s1", Timestamp: t0.Add(200 * time.Second), Value: 15},
		{ID: 6, SensorID: "s1", Timestamp: t0.Add(239 * time.Second), Value: 40},
		{ID: 7, SensorID: "s2", Timestamp: t0, Value: 1},
	})
}

func collect(t *testing.T, snap *Snapshot, sensorID string, b Bucketing) []Bucket {
	t.Helper()
	seq, err := snap.Chart(sensorID, b)
	if err != nil {
		t.Fatalf("Chart() error = %v", err)
	}
	return slices.Collect(seq)
}

func values(bs []Bucket) []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Value
	}
	return out
}

func TestChart_Aggregates(t *testing.T) {
	snap := chartFixture()

	tests := []struct {
		agg  Aggregate
		want []float64
	}{
		{"", []float64{15, 30, 20}},
		{AggregateMean, []float64{15, 30, 20}},
		{AggregateMin, []float64{10, 30, 5}},
		{AggregateMax, []float64{20, 30, 40}},
		{AggregateSum, []float64{30, 30, 60}},
		{AggregateCount, []float64{2, 1, 3}},
		{AggregateLast, []float64{20, 30, 40}},
	}

	for _, tt := range tests {
		t.Run(string(tt.agg), func(t *testing.T) {
			got := collect(t, snap, "s1", Bucketing{Width: time.Minute, Aggregate: tt.agg})
			if !slices.Equal(values(got), tt.want) {
				t.Errorf("values = %v, want %v", values(got), tt.want)
			}
		})
	}
}

func TestChart_BucketsAscendingAndNonEmpty(t *testing.T) {
	got := collect(t, chartFixture(), "s1", Bucketing{})

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (empty 12:02 bucket omitted)", len(got))
	}
	for i, b := range got {
		if b.Count == 0 {
			t.Errorf("bucket %d is empty", i)
		}
		if !b.End.Equal(b.Start.Add(DefaultBucketWidth)) {
			t.Errorf("bucket %d spans %v..%v", i, b.Start, b.End)
		}
		if i > 0 && !got[i-1].Start.Before(b.Start) {
			t.Errorf("bucket starts not strictly ascending at %d", i)
		}
	}
	if !got[0].Start.Equal(t0) || !got[2].Start.Equal(t0.Add(3*time.Minute)) {
		t.Errorf("bucket starts = %v, %v", got[0].Start, got[2].Start)
	}
}

func TestChart_LimitKeepsMostRecent(t *testing.T) {
	got := collect(t, chartFixture(), "s1", Bucketing{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Start.Equal(t0.Add(time.Minute)) {
		t.Errorf("first bucket = %v, want 12:01", got[0].Start)
	}

	all := collect(t, chartFixture(), "s1", Bucketing{Limit: 10})
	if len(all) != 3 {
		t.Errorf("limit above bucket count: len = %d, want 3", len(all))
	}
}

func TestChart_Window(t *testing.T) {
	got := collect(t, chartFixture(), "s1", Bucketing{
		From: ptr(t0.Add(60 * time.Second)),
		To:   ptr(t0.Add(200 * time.Second)),
	})
	// 12:01 -> {30}, 12:03 -> {5, 15}
	if !slices.Equal(values(got), []float64{30, 10}) {
		t.Errorf("values = %v, want [30 10]", values(got))
	}
}

func TestChart_EarlyStop(t *testing.T) {
	seq, err := chartFixture().Chart("s1", Bucketing{})
	if err != nil {
		t.Fatalf("Chart() error = %v", err)
	}
	n := 0
	for range seq {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterated %d buckets, want 1", n)
	}
}

func TestChart_Errors(t *testing.T) {
	snap := chartFixture()

	if _, err := snap.Chart("missing", Bucketing{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Chart(missing) error = %v, want ErrNotFound", err)
	}

	for _, b := range []Bucketing{
		{Width: -time.Second},
		{Aggregate: "median"},
		{Limit: -1},
		{From: ptr(t0.Add(time.Hour)), To: ptr(t0)},
	} {
		if _, err := snap.Chart("s1", b); !errors.Is(err, ErrInvalidBucketing) {
			t.Errorf("Chart(%+v) error = %v, want ErrInvalidBucketing", b, err)
		}
	}
}

func TestBucketStart(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 7, 42, 500, time.UTC)
	tests := []struct {
		width time.Duration
		want  time.Time
	}{
		{time.Minute, time.Date(2026, 10, 19, 12, 7, 0, 0, time.UTC)},
		{5 * time.Minute, time.Date(2026, 10, 19, 12, 5, 0, 0, time.UTC)},
		{time.Hour, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := bucketStart(ts, tt.width); !got.Equal(tt.want) {
			t.Errorf("bucketStart(%v) = %v, want %v", tt.width, got, tt.want)
		}
	}
}
