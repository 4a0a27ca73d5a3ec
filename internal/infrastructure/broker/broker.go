// Package broker runs an in-process MQTT broker so the service can work
// without an external Mosquitto instance. Sensors, devices and the service's
// own MQTT client all connect to it over TCP like any other broker.
package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/iot-core/internal/infrastructure/config"
)

// ErrAlreadyStarted is returned by Start when the broker is already serving.
var ErrAlreadyStarted = errors.New("broker: already started")

// Server is an embedded MQTT broker.
type Server struct {
	srv     *mqttbroker.Server
	address string
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
}

// New creates a broker listening on cfg.Address. It does not accept
// connections until Start is called.
func New(cfg config.EmbeddedBrokerConfig, logger *slog.Logger) (*Server, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("broker: address is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("component", "mqtt-broker"))

	srv := mqttbroker.New(&mqttbroker.Options{
		Logger:       logger,
		InlineClient: true,
	})

	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: cfg.Address})
	if err := srv.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("broker: adding listener on %s: %w", cfg.Address, err)
	}

	// Anonymous access: the broker is meant for local, single-host setups.
	if err := srv.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("broker: adding auth hook: %w", err)
	}

	return &Server{srv: srv, address: cfg.Address, logger: logger}, nil
}

// Start begins serving clients in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	go func() {
		if err := s.srv.Serve(); err != nil {
			s.logger.Error("embedded broker stopped", "error", err)
		}
	}()

	s.logger.Info("embedded broker started", "address", s.address)
	return nil
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.address
}

// ClientCount returns the number of clients currently known to the broker.
func (s *Server) ClientCount() int {
	return s.srv.Clients.Len()
}

// Close stops all listeners and disconnects every client.
func (s *Server) Close() error {
	if err := s.srv.Close(); err != nil {
		return fmt.Errorf("broker: close: %w", err)
	}
	return nil
}
