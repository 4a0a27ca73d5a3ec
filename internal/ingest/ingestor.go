package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/iot-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/iot-core/internal/reading"
)

// messageTimeout bounds the store write for one MQTT message.
const messageTimeout = 5 * time.Second

// Logger defines the logging interface used by the ingestor.
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

// Subscriber is the part of the MQTT client the ingestor needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Ingestor is the single entry point for new readings, whether they arrive
// over MQTT or the HTTP API. It appends to the store, mirrors to the
// configured sinks and notifies listeners.
type Ingestor struct {
	store  *reading.Store
	topics mqtt.Topics
	units  map[string]string
	logger Logger

	mu         sync.RWMutex
	sinks      []Sink
	onIngested []func(reading.SensorReading)
}

// New creates an ingestor writing to store. units maps multi-measure field
// names to units.
func New(store *reading.Store, topics mqtt.Topics, units map[string]string) *Ingestor {
	return &Ingestor{
		store:  store,
		topics: topics,
		units:  units,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (i *Ingestor) SetLogger(logger Logger) {
	i.logger = logger
}

// AddSink mirrors every accepted reading to s.
func (i *Ingestor) AddSink(s Sink) {
	i.mu.Lock()
	i.sinks = append(i.sinks, s)
	i.mu.Unlock()
}

// OnIngested registers fn to run for every accepted reading.
func (i *Ingestor) OnIngested(fn func(reading.SensorReading)) {
	i.mu.Lock()
	i.onIngested = append(i.onIngested, fn)
	i.mu.Unlock()
}

// Ingest stores one reading. Sink failures are logged and never reject
// the reading; the store is authoritative.
func (i *Ingestor) Ingest(ctx context.Context, r reading.SensorReading) (reading.SensorReading, error) {
	stored, err := i.store.Append(ctx, r)
	if err != nil {
		return reading.SensorReading{}, err
	}

	i.mu.RLock()
	sinks, listeners := i.sinks, i.onIngested
	i.mu.RUnlock()

	for _, s := range sinks {
		if err := s.WriteReading(ctx, stored); err != nil {
			i.logger.Warn("mirroring reading failed",
				"sink", s.Name(),
				"sensor_id", stored.SensorID,
				"error", err,
			)
		}
	}
	for _, fn := range listeners {
		fn(stored)
	}

	return stored, nil
}

// HandleMessage is the MQTT handler for sensor topics.
func (i *Ingestor) HandleMessage(topic string, payload []byte) error {
	sensorID, ok := i.topics.SensorID(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	readings, err := ParsePayload(sensorID, payload, i.units)
	if err != nil {
		return fmt.Errorf("sensor %s: %w", sensorID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	var errs []error
	for _, r := range readings {
		if _, err := i.Ingest(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("sensor %s: %w", r.SensorID, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe starts consuming every sensor topic.
func (i *Ingestor) Subscribe(client Subscriber, qos byte) error {
	if err := client.Subscribe(i.topics.AllSensors(), qos, i.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to sensor topics: %w", err)
	}
	i.logger.Info("subscribed to sensor readings", "topic", i.topics.AllSensors())
	return nil
}
