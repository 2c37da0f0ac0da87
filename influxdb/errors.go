package influxdb

import "errors"

// Sentinel errors returned by the metrics export client. Callers match
// them with errors.Is. HealthCheck may also return other errors from
// the server ping; asynchronous write failures are reported through
// the error callback instead.
var (
	// ErrNotConnected is returned when an operation needs a live client
	// but Connect has not succeeded.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps the health-check failure from Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when metrics export is turned
	// off in the configuration. Not a fault: callers skip the exporter.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
