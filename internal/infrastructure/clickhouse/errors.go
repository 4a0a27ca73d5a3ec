package clickhouse

import "errors"

// Sentinel errors for ClickHouse operations.
var (
	// ErrDisabled indicates the archive is disabled in configuration.
	ErrDisabled = errors.New("clickhouse: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("clickhouse: connection failed")

	// ErrInvalidTable indicates the configured table name is not a plain identifier.
	ErrInvalidTable = errors.New("clickhouse: invalid table name")

	// ErrWriteFailed indicates an insert failed.
	ErrWriteFailed = errors.New("clickhouse: write failed")
)
