package influxdb

import "errors"

// Sentinel errors for InfluxDB operations. Check with errors.Is().
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates InfluxDB mirroring is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
