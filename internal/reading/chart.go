package reading

import (
	"fmt"
	"iter"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultBucketWidth is used when Bucketing.Width is zero.
const DefaultBucketWidth = time.Minute

// Aggregate reduces the readings in one bucket to a single value.
type Aggregate string

// Supported aggregates.
const (
	AggregateMean  Aggregate = "mean"
	AggregateMin   Aggregate = "min"
	AggregateMax   Aggregate = "max"
	AggregateSum   Aggregate = "sum"
	AggregateCount Aggregate = "count"
	AggregateLast  Aggregate = "last"
)

// ParseAggregate maps a user-supplied name to an Aggregate. Empty means mean.
func ParseAggregate(s string) (Aggregate, error) {
	switch a := Aggregate(strings.ToLower(strings.TrimSpace(s))); a {
	case "", "avg", "average":
		return AggregateMean, nil
	case AggregateMean, AggregateMin, AggregateMax, AggregateSum, AggregateCount, AggregateLast:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown aggregate %q", ErrInvalidBucketing, s)
}

// Bucketing configures a chart query.
type Bucketing struct {
	// Width of each bucket. Buckets are aligned to the Unix epoch so the
	// same reading always lands in the same bucket.
	Width time.Duration

	Aggregate Aggregate

	// Optional inclusive window on reading timestamps.
	From *time.Time
	To   *time.Time

	// Limit keeps only the most recent N non-empty buckets. Zero keeps all.
	Limit int
}

func (b Bucketing) normalize() (Bucketing, error) {
	if b.Width == 0 {
		b.Width = DefaultBucketWidth
	}
	if b.Width < 0 {
		return b, fmt.Errorf("%w: width must be positive", ErrInvalidBucketing)
	}
	if b.Aggregate == "" {
		b.Aggregate = AggregateMean
	}
	if _, err := ParseAggregate(string(b.Aggregate)); err != nil {
		return b, err
	}
	if b.Limit < 0 {
		return b, fmt.Errorf("%w: limit must not be negative", ErrInvalidBucketing)
	}
	if b.From != nil && b.To != nil && b.From.After(*b.To) {
		return b, fmt.Errorf("%w: from is after to", ErrInvalidBucketing)
	}
	return b, nil
}

// Bucket is one chart point. Empty buckets are never produced.
type Bucket struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value float64   `json:"value"`
	Count int       `json:"count"`
}

// Chart groups a sensor's readings into fixed-width buckets in ascending
// order of bucket start. The sequence is lazy and reflects this snapshot.
func (s *Snapshot) Chart(sensorID string, b Bucketing) (iter.Seq[Bucket], error) {
	b, err := b.normalize()
	if err != nil {
		return nil, err
	}

	rs := s.bySensor[sensorID]
	if len(rs) == 0 {
		return nil, fmt.Errorf("%w: sensor %q has no readings", ErrNotFound, sensorID)
	}

	rs = window(rs, b.From, b.To)
	if b.Limit > 0 {
		rs = lastBuckets(rs, b.Width, b.Limit)
	}

	return func(yield func(Bucket) bool) {
		i := 0
		for i < len(rs) {
			start := bucketStart(rs[i].Timestamp, b.Width)
			end := start.Add(b.Width)

			j := i
			for j < len(rs) && rs[j].Timestamp.Before(end) {
				j++
			}

			if !yield(Bucket{
				Start: start,
				End:   end,
				Value: aggregate(b.Aggregate, rs[i:j]),
				Count: j - i,
			}) {
				return
			}
			i = j
		}
	}, nil
}

// window trims rs (in store order) to the inclusive [from, to] range.
func window(rs []SensorReading, from, to *time.Time) []SensorReading {
	lo, hi := 0, len(rs)
	if from != nil {
		lo = sort.Search(len(rs), func(i int) bool { return !rs[i].Timestamp.Before(*from) })
	}
	if to != nil {
		hi = sort.Search(len(rs), func(i int) bool { return rs[i].Timestamp.After(*to) })
	}
	if lo >= hi {
		return nil
	}
	return rs[lo:hi]
}

// lastBuckets returns the suffix of rs covering its final n buckets.
func lastBuckets(rs []SensorReading, width time.Duration, n int) []SensorReading {
	seen := 0
	var current time.Time
	for i := len(rs) - 1; i >= 0; i-- {
		start := bucketStart(rs[i].Timestamp, width)
		if seen == 0 || !start.Equal(current) {
			if seen == n {
				return rs[i+1:]
			}
			seen++
			current = start
		}
	}
	return rs
}

// bucketStart floors t to a multiple of width since the Unix epoch.
func bucketStart(t time.Time, width time.Duration) time.Time {
	ns := t.UnixNano()
	w := int64(width)
	floor := ns - ns%w
	if ns%w < 0 {
		floor -= w
	}
	return time.Unix(0, floor).UTC()
}

func aggregate(a Aggregate, rs []SensorReading) float64 {
	switch a {
	case AggregateCount:
		return float64(len(rs))
	case AggregateLast:
		return rs[len(rs)-1].Value
	case AggregateMin:
		v := math.Inf(1)
		for _, r := range rs {
			v = math.Min(v, r.Value)
		}
		return v
	case AggregateMax:
		v := math.Inf(-1)
		for _, r := range rs {
			v = math.Max(v, r.Value)
		}
		return v
	}

	var sum float64
	for _, r := range rs {
		sum += r.Value
	}
	if a == AggregateSum {
		return sum
	}
	return sum / float64(len(rs))
}
