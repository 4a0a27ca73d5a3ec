package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/iot-core/internal/control"
	"github.com/nerrad567/iot-core/internal/history"
	"github.com/nerrad567/iot-core/internal/infrastructure/config"
	"github.com/nerrad567/iot-core/internal/infrastructure/logging"
	"github.com/nerrad567/iot-core/internal/ingest"
	"github.com/nerrad567/iot-core/internal/reading"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports whether a dependency is usable.
type HealthChecker func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Readings   *reading.Store
	History    *history.Log
	Ingestor   *ingest.Ingestor
	Controller *control.Controller

	// Checks are run by GET /api/health, keyed by component name.
	Checks  map[string]HealthChecker
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	readings   *reading.Store
	history    *history.Log
	ingestor   *ingest.Ingestor
	controller *control.Controller
	checks     map[string]HealthChecker
	version    string

	readingQuery *reading.QueryEngine
	historyQuery *history.QueryEngine

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The hub is created here so that readings ingested and commands recorded
// before Start() still reach the broadcast path once clients connect.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Readings == nil:
		return nil, fmt.Errorf("reading store is required")
	case deps.History == nil:
		return nil, fmt.Errorf("command log is required")
	case deps.Ingestor == nil:
		return nil, fmt.Errorf("ingestor is required")
	case deps.Controller == nil:
		return nil, fmt.Errorf("device controller is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		logger:       deps.Logger,
		readings:     deps.Readings,
		history:      deps.History,
		ingestor:     deps.Ingestor,
		controller:   deps.Controller,
		checks:       deps.Checks,
		version:      deps.Version,
		readingQuery: reading.NewQueryEngine(deps.Readings),
		historyQuery: history.NewQueryEngine(deps.History),
		hub:          NewHub(deps.WS, deps.Logger),
	}

	s.ingestor.OnIngested(func(r reading.SensorReading) {
		s.hub.Broadcast(ChannelReadingCreated, r)
	})
	s.controller.OnRecorded(func(e history.Entry) {
		s.hub.Broadcast(ChannelHistoryRecorded, e)
	})

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}
