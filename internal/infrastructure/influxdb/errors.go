package influxdb

import "errors"

var (
	// ErrDisabled comes back from Connect when influxdb.enabled is
	// false. The daemon runs fine without telemetry; callers match
	// this with errors.Is and carry on with a nil client.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed startup ping. With telemetry
	// enabled an unreachable server is a configuration problem, so
	// this one is fatal.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected reports a health check against a closed client.
	ErrNotConnected = errors.New("influxdb: not connected")
)
