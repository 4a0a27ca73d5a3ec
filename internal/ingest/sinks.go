package ingest

import (
	"context"
	"time"

	"github.com/nerrad567/iot-core/internal/reading"
)

// Sink receives a copy of every stored reading.
type Sink interface {
	Name() string
	WriteReading(ctx context.Context, r reading.SensorReading) error
}

// InfluxWriter is satisfied by *influxdb.Client.
type InfluxWriter interface {
	WriteReading(sensorID, unit string, value float64, ts time.Time)
}

// ClickHouseWriter is satisfied by *clickhouse.Client.
type ClickHouseWriter interface {
	WriteReading(ctx context.Context, id int64, sensorID, unit string, value float64, ts time.Time) error
}

type influxSink struct{ w InfluxWriter }

// NewInfluxSink mirrors readings into InfluxDB. Writes are batched by the
// client so this never returns an error.
func NewInfluxSink(w InfluxWriter) Sink {
	return influxSink{w: w}
}

func (influxSink) Name() string { return "influxdb" }

func (s influxSink) WriteReading(_ context.Context, r reading.SensorReading) error {
	s.w.WriteReading(r.SensorID, r.Unit, r.Value, r.Timestamp)
	return nil
}

type clickhouseSink struct{ w ClickHouseWriter }

// NewClickHouseSink archives readings into ClickHouse.
func NewClickHouseSink(w ClickHouseWriter) Sink {
	return clickhouseSink{w: w}
}

func (clickhouseSink) Name() string { return "clickhouse" }

func (s clickhouseSink) WriteReading(ctx context.Context, r reading.SensorReading) error {
	return s.w.WriteReading(ctx, r.ID, r.SensorID, r.Unit, r.Value, r.Timestamp)
}
