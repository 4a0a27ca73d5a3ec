package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the IoT core service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Logging    LoggingConfig    `yaml:"logging"`
	Readings   ReadingsConfig   `yaml:"readings"`
	Devices    DevicesConfig    `yaml:"devices"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig     `yaml:"broker"`
	Auth      MQTTAuthConfig       `yaml:"auth"`
	QoS       int                  `yaml:"qos"`
	Reconnect MQTTReconnectConfig  `yaml:"reconnect"`
	Topics    MQTTTopicsConfig     `yaml:"topics"`
	Embedded  EmbeddedBrokerConfig `yaml:"embedded"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MQTTTopicsConfig controls the topic namespace used for sensors and devices.
type MQTTTopicsConfig struct {
	// Prefix is the root of every topic, e.g. "iot" gives iot/sensors/+.
	Prefix string `yaml:"prefix"`
}

// EmbeddedBrokerConfig runs an in-process MQTT broker for standalone deployments.
type EmbeddedBrokerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ClickHouseConfig contains settings for the optional reading archive.
type ClickHouseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr"`
	Database    string `yaml:"database"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Table       string `yaml:"table"`
	DialTimeout int    `yaml:"dial_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ReadingsConfig controls sensor reading ingestion.
type ReadingsConfig struct {
	// AllowOutOfOrder accepts readings older than a sensor's latest and
	// slots them into timestamp order instead of rejecting them.
	AllowOutOfOrder bool `yaml:"allow_out_of_order"`

	// Units maps a measurement field name (temperature, humidity, ...) to
	// the unit stamped on readings expanded from multi-field payloads.
	Units map[string]string `yaml:"units"`
}

// DevicesConfig controls device command dispatch.
type DevicesConfig struct {
	// Transport is "mqtt" or "loopback".
	Transport string `yaml:"transport"`

	// DispatchTimeout is how long a command may wait for an acknowledgement
	// before it is recorded as pending.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`

	Catalog []DeviceConfig `yaml:"catalog"`
}

// DeviceConfig describes one controllable device.
type DeviceConfig struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Actions []string `yaml:"actions"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file in the working directory, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: IOTCORE_SECTION_KEY
// For example: IOTCORE_DATABASE_PATH, IOTCORE_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, used when no file is present.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/iotcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iotcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Topics: MQTTTopicsConfig{
				Prefix: "iot",
			},
			Embedded: EmbeddedBrokerConfig{
				Address: ":1883",
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			MaxBodyBytes: 1 << 20,
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		ClickHouse: ClickHouseConfig{
			Addr:        "localhost:9000",
			Database:    "default",
			Username:    "default",
			Table:       "sensor_readings",
			DialTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Readings: ReadingsConfig{
			Units: map[string]string{
				"temperature": "°C",
				"humidity":    "%",
				"light":       "lux",
			},
		},
		Devices: DevicesConfig{
			Transport:       "mqtt",
			DispatchTimeout: 5 * time.Second,
			Catalog: []DeviceConfig{
				{ID: "device1", Name: "Air conditioner", Actions: []string{"on", "off"}},
				{ID: "device2", Name: "Light", Actions: []string{"on", "off"}},
				{ID: "device3", Name: "Fan", Actions: []string{"on", "off"}},
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IOTCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("IOTCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IOTCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v, ok := envInt("IOTCORE_MQTT_PORT"); ok {
		cfg.MQTT.Broker.Port = v
	}
	if v := os.Getenv("IOTCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IOTCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v, ok := envBool("IOTCORE_MQTT_EMBEDDED"); ok {
		cfg.MQTT.Embedded.Enabled = v
	}

	// API
	if v := os.Getenv("IOTCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("IOTCORE_API_PORT"); ok {
		cfg.API.Port = v
	}

	// InfluxDB
	if v := os.Getenv("IOTCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// ClickHouse
	if v := os.Getenv("IOTCORE_CLICKHOUSE_ADDR"); v != "" {
		cfg.ClickHouse.Addr = v
	}
	if v := os.Getenv("IOTCORE_CLICKHOUSE_PASSWORD"); v != "" {
		cfg.ClickHouse.Password = v
	}

	// Logging
	if v := os.Getenv("IOTCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Devices
	if v := os.Getenv("IOTCORE_DEVICES_TRANSPORT"); v != "" {
		cfg.Devices.Transport = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks the configuration for errors.
//
// All problems are collected so a single run reports every mistake.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.Prefix == "" {
		errs = append(errs, "mqtt.topics.prefix is required")
	}
	if strings.ContainsAny(c.MQTT.Topics.Prefix, "+#") {
		errs = append(errs, "mqtt.topics.prefix must not contain wildcards")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Addr == "" {
		errs = append(errs, "clickhouse.addr is required when clickhouse is enabled")
	}

	switch c.Devices.Transport {
	case "mqtt", "loopback":
	default:
		errs = append(errs, fmt.Sprintf("devices.transport %q must be mqtt or loopback", c.Devices.Transport))
	}
	if c.Devices.DispatchTimeout <= 0 {
		errs = append(errs, "devices.dispatch_timeout must be positive")
	}
	errs = append(errs, validateCatalog(c.Devices.Catalog)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validateCatalog(catalog []DeviceConfig) []string {
	var errs []string
	if len(catalog) == 0 {
		return append(errs, "devices.catalog must list at least one device")
	}

	seen := make(map[string]bool, len(catalog))
	for i, d := range catalog {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("devices.catalog[%d].id is required", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("devices.catalog: duplicate id %q", d.ID))
		}
		seen[d.ID] = true
		if len(d.Actions) == 0 {
			errs = append(errs, fmt.Sprintf("devices.catalog[%s] has no actions", d.ID))
		}
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
