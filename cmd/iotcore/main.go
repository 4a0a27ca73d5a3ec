// IoT Core - sensor telemetry and device control service
//
// This is the main entry point for the IoT core. It ingests sensor readings
// over MQTT and HTTP, answers dashboard queries (latest, chart, sort, search),
// dispatches on/off commands to devices, and keeps an append-only history of
// every command and its outcome.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/iot-core/migrations"

	"github.com/nerrad567/iot-core/internal/api"
	"github.com/nerrad567/iot-core/internal/control"
	"github.com/nerrad567/iot-core/internal/history"
	"github.com/nerrad567/iot-core/internal/infrastructure/broker"
	"github.com/nerrad567/iot-core/internal/infrastructure/clickhouse"
	"github.com/nerrad567/iot-core/internal/infrastructure/config"
	"github.com/nerrad567/iot-core/internal/infrastructure/database"
	"github.com/nerrad567/iot-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/iot-core/internal/infrastructure/logging"
	"github.com/nerrad567/iot-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/iot-core/internal/ingest"
	"github.com/nerrad567/iot-core/internal/reading"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting IoT core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	readings := reading.NewStore(reading.NewSQLiteRepository(db.DB), cfg.Readings.AllowOutOfOrder)
	readings.SetLogger(log.With("component", "readings"))
	if loadErr := readings.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading readings: %w", loadErr)
	}

	commands := history.NewLog(history.NewSQLiteRepository(db.DB))
	commands.SetLogger(log.With("component", "history"))
	if loadErr := commands.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading command history: %w", loadErr)
	}
	log.Info("stores loaded", "readings", readings.Count(), "commands", commands.Count())

	if cfg.MQTT.Embedded.Enabled {
		brk, brokerErr := startBroker(cfg.MQTT.Embedded, log)
		if brokerErr != nil {
			return brokerErr
		}
		defer func() {
			log.Info("stopping embedded MQTT broker")
			if closeErr := brk.Close(); closeErr != nil {
				log.Error("error stopping embedded broker", "error", closeErr)
			}
		}()
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	transport, err := newTransport(cfg.Devices, mqttClient, log)
	if err != nil {
		return err
	}
	controller := control.NewController(control.NewCatalog(cfg.Devices.Catalog), commands, transport, cfg.Devices.DispatchTimeout)
	controller.SetLogger(log.With("component", "control"))

	ingestor := ingest.New(readings, mqttClient.Topics(), cfg.Readings.Units)
	ingestor.SetLogger(log.With("component", "ingest"))

	checks := map[string]api.HealthChecker{
		"database": db.HealthCheck,
		"mqtt":     mqttClient.HealthCheck,
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		ingestor.AddSink(ingest.NewInfluxSink(influxClient))
		controller.OnRecorded(func(e history.Entry) {
			if e.History != nil {
				influxClient.WriteCommandOutcome(e.Command.DeviceID, e.Command.Action, string(e.History.Result), e.History.CompletedAt)
			}
		})
		checks["influxdb"] = influxClient.HealthCheck
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.ClickHouse.Enabled {
		chClient, chErr := clickhouse.Connect(ctx, cfg.ClickHouse)
		if chErr != nil {
			return fmt.Errorf("connecting to ClickHouse: %w", chErr)
		}
		defer func() {
			log.Info("closing ClickHouse connection")
			if closeErr := chClient.Close(); closeErr != nil {
				log.Error("error closing ClickHouse", "error", closeErr)
			}
		}()
		ingestor.AddSink(ingest.NewClickHouseSink(chClient))
		checks["clickhouse"] = chClient.HealthCheck
		log.Info("ClickHouse connected", "addr", cfg.ClickHouse.Addr, "table", cfg.ClickHouse.Table)
	} else {
		log.Info("ClickHouse disabled")
	}

	if subErr := ingestor.Subscribe(mqttClient, mqttClient.QoS()); subErr != nil {
		return fmt.Errorf("subscribing to sensor topics: %w", subErr)
	}
	log.Info("sensor ingestion subscribed", "topic", mqttClient.Topics().AllSensors())

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.With("component", "api"),
		Readings:   readings,
		History:    commands,
		Ingestor:   ingestor,
		Controller: controller,
		Checks:     checks,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns the config file path from IOTCORE_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("IOTCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck runs every check concurrently and returns the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			if err := check(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func startBroker(cfg config.EmbeddedBrokerConfig, log *logging.Logger) (*broker.Server, error) {
	brk, err := broker.New(cfg, log.With("component", "broker").Logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedded broker: %w", err)
	}
	if err := brk.Start(); err != nil {
		return nil, fmt.Errorf("starting embedded broker: %w", err)
	}
	log.Info("embedded MQTT broker listening", "address", brk.Address())
	return brk, nil
}

// newTransport selects how commands reach devices.
func newTransport(cfg config.DevicesConfig, client *mqtt.Client, log *logging.Logger) (control.Transport, error) {
	switch cfg.Transport {
	case "loopback":
		log.Warn("device transport is loopback: commands succeed without reaching devices")
		return control.LoopbackTransport{}, nil
	default:
		t := control.NewMQTTTransport(client, client.Topics(), client.QoS())
		t.SetLogger(log.With("component", "transport"))
		if err := t.Start(); err != nil {
			return nil, fmt.Errorf("subscribing to device acknowledgements: %w", err)
		}
		return t, nil
	}
}
