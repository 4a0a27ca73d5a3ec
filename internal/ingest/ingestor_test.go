package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/iot-core/internal/infrastructure/broker"
	"github.com/nerrad567/iot-core/internal/infrastructure/config"
	"github.com/nerrad567/iot-core/internal/infrastructure/database"
	"github.com/nerrad567/iot-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/iot-core/internal/reading"
	_ "github.com/nerrad567/iot-core/migrations"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestIngestor(t *testing.T) (*Ingestor, *reading.Store) {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	store := reading.NewStore(reading.NewSQLiteRepository(db.DB), false)
	return New(store, mqtt.NewTopics("iot"), testUnits), store
}

type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	seen []reading.SensorReading
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) WriteReading(_ context.Context, r reading.SensorReading) error {
	s.mu.Lock()
	s.seen = append(s.seen, r)
	s.mu.Unlock()
	return s.err
}

func TestIngest_MirrorsAndNotifies(t *testing.T) {
	ing, store := newTestIngestor(t)
	good := &recordingSink{name: "good"}
	broken := &recordingSink{name: "broken", err: errors.New("archive offline")}
	ing.AddSink(broken)
	ing.AddSink(good)

	var notified []reading.SensorReading
	ing.OnIngested(func(r reading.SensorReading) { notified = append(notified, r) })

	got, err := ing.Ingest(context.Background(), reading.SensorReading{SensorID: "s1", Timestamp: t0, Value: 20})
	if err != nil {
		t.Fatalf("Ingest() error = %v, want sink failure ignored", err)
	}
	if got.ID == 0 {
		t.Error("Ingest() returned reading without store ID")
	}
	if store.Count() != 1 {
		t.Errorf("store.Count() = %d, want 1", store.Count())
	}
	if len(good.seen) != 1 || good.seen[0].ID != got.ID {
		t.Errorf("good sink saw %+v, want stored reading", good.seen)
	}
	if len(broken.seen) != 1 {
		t.Errorf("broken sink saw %d readings, want 1", len(broken.seen))
	}
	if len(notified) != 1 || notified[0].ID != got.ID {
		t.Errorf("listeners saw %+v", notified)
	}
}

func TestIngest_RejectedReadingNotMirrored(t *testing.T) {
	ing, _ := newTestIngestor(t)
	sink := &recordingSink{name: "sink"}
	ing.AddSink(sink)

	ctx := context.Background()
	if _, err := ing.Ingest(ctx, reading.SensorReading{SensorID: "s1", Timestamp: t0, Value: 1}); err != nil {
		t.Fatal(err)
	}
	_, err := ing.Ingest(ctx, reading.SensorReading{SensorID: "s1", Timestamp: t0.Add(-time.Minute), Value: 2})
	if !errors.Is(err, reading.ErrOutOfOrderReading) {
		t.Fatalf("Ingest() error = %v, want ErrOutOfOrderReading", err)
	}
	if len(sink.seen) != 1 {
		t.Errorf("sink saw %d readings, want 1", len(sink.seen))
	}
}

func TestHandleMessage(t *testing.T) {
	ing, store := newTestIngestor(t)

	if err := ing.HandleMessage("iot/sensors/room1", []byte(`{"temperature":25,"humidity":40,"light":99}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if err := ing.HandleMessage("iot/sensors/room2/probe", []byte(`{"value":5.5,"unit":"V"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	want := []string{"room1/humidity", "room1/light", "room1/temperature", "room2/probe"}
	got := store.Snapshot().Sensors()
	if len(got) != len(want) {
		t.Fatalf("Sensors() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sensors()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	latest, err := store.Snapshot().Latest("room1/temperature")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(latest) != 1 || latest[0].Unit != "°C" || latest[0].Value != 25 {
		t.Errorf("Latest(room1/temperature) = %+v", latest)
	}
}

func TestHandleMessage_Errors(t *testing.T) {
	ing, store := newTestIngestor(t)

	if err := ing.HandleMessage("iot/ack/device1", []byte("1")); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("HandleMessage(ack topic) error = %v, want ErrUnknownTopic", err)
	}
	if err := ing.HandleMessage("iot/sensors/s1", []byte("garbage")); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("HandleMessage(garbage) error = %v, want ErrInvalidPayload", err)
	}
	if store.Count() != 0 {
		t.Errorf("store.Count() = %d, want 0", store.Count())
	}
}

type fakeInflux struct {
	sensorID, unit string
	value          float64
}

func (f *fakeInflux) WriteReading(sensorID, unit string, value float64, _ time.Time) {
	f.sensorID, f.unit, f.value = sensorID, unit, value
}

type fakeClickHouse struct {
	id  int64
	err error
}

func (f *fakeClickHouse) WriteReading(_ context.Context, id int64, _, _ string, _ float64, _ time.Time) error {
	f.id = id
	return f.err
}

func TestSinkAdapters(t *testing.T) {
	r := reading.SensorReading{ID: 42, SensorID: "s1", Value: 7, Unit: "lux", Timestamp: t0}

	fi := &fakeInflux{}
	influx := NewInfluxSink(fi)
	if err := influx.WriteReading(context.Background(), r); err != nil {
		t.Errorf("influx WriteReading() error = %v", err)
	}
	if fi.sensorID != "s1" || fi.unit != "lux" || fi.value != 7 || influx.Name() != "influxdb" {
		t.Errorf("influx sink wrote %+v", fi)
	}

	fc := &fakeClickHouse{err: errors.New("down")}
	ch := NewClickHouseSink(fc)
	if err := ch.WriteReading(context.Background(), r); err == nil {
		t.Error("clickhouse WriteReading() error = nil, want passthrough")
	}
	if fc.id != 42 || ch.Name() != "clickhouse" {
		t.Errorf("clickhouse sink id = %d", fc.id)
	}
}

func TestSubscribe_EndToEnd(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	srv, err := broker.New(config.EmbeddedBrokerConfig{Enabled: true, Address: addr}, nil)
	if err != nil {
		t.Fatalf("broker.New() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: host, Port: port, ClientID: "ingest-core"},
		QoS:    1,
		Topics: config.MQTTTopicsConfig{Prefix: "iot"},
	}

	var client *mqtt.Client
	deadline := time.Now().Add(3 * time.Second)
	for {
		client, err = mqtt.Connect(cfg)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("mqtt.Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ing, store := newTestIngestor(t)
	ing.topics = client.Topics()

	arrived := make(chan reading.SensorReading, 4)
	ing.OnIngested(func(r reading.SensorReading) { arrived <- r })

	if err := ing.Subscribe(client, 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	body, _ := json.Marshal(map[string]any{"value": 18.25, "unit": "°C"})
	if err := client.Publish(client.Topics().Sensor("greenhouse"), body, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case r := <-arrived:
		if r.SensorID != "greenhouse" || r.Value != 18.25 {
			t.Errorf("ingested %+v", r)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reading published over MQTT never reached the store")
	}
	if store.Count() != 1 {
		t.Errorf("store.Count() = %d, want 1", store.Count())
	}
}
