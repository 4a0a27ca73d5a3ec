package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/nerrad567/iot-core/internal/infrastructure/config"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultPingTimeout = 5 * time.Second
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// conn is the subset of driver.Conn the archive uses.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Ping(ctx context.Context) error
	Close() error
}

// Client archives sensor readings into a ClickHouse MergeTree table.
type Client struct {
	conn  conn
	table string
}

// Connect opens a native-protocol connection, pings the server and
// creates the readings table if it does not exist.
func Connect(ctx context.Context, cfg config.ClickHouseConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if !identifierPattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, cfg.Table)
	}

	dialTimeout := time.Duration(cfg.DialTimeout) * time.Second
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	c, err := ch.Open(&ch.Options{
		Addr: []string{cfg.Addr},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: dialTimeout,
		Compression: &ch.Compression{
			Method: ch.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	client := &Client{conn: c, table: cfg.Table}

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := client.InitSchema(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id        Int64,
	sensor_id LowCardinality(String),
	ts        DateTime64(9, 'UTC'),
	value     Float64,
	unit      LowCardinality(String)
) ENGINE = MergeTree
ORDER BY (sensor_id, ts, id)`, c.table)
}

// InitSchema creates the readings table if it does not exist.
func (c *Client) InitSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, c.createTableSQL()); err != nil {
		return fmt.Errorf("clickhouse: creating table %s: %w", c.table, err)
	}
	return nil
}

// WriteReading inserts one reading. id is the reading's SQLite row id so
// that archived rows can be matched back to the primary store.
func (c *Client) WriteReading(ctx context.Context, id int64, sensorID, unit string, value float64, ts time.Time) error {
	query := fmt.Sprintf("INSERT INTO %s (id, sensor_id, ts, value, unit) VALUES (?, ?, ?, ?, ?)", c.table)
	if err := c.conn.Exec(ctx, query, id, sensorID, ts.UTC(), value, unit); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := c.conn.Ping(pingCtx); err != nil {
		return fmt.Errorf("clickhouse health check failed: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("clickhouse: close: %w", err)
	}
	return nil
}
