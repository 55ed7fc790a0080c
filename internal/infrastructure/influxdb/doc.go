// Package influxdb ships telemetry to InfluxDB v2.
//
// The bridge records instantaneous power draw from TA sensors and the
// inverter, accumulated energy totals, other numeric element metrics
// (temperatures, grid voltage) and poll cycle statistics. SQLite
// remains the source of truth for totals; InfluxDB is for graphs and
// retention policies, and the daemon treats it as optional.
//
// Connect returns ErrDisabled when influxdb.enabled is false, which
// callers treat as "run without telemetry" rather than a failure.
// Writes go through the official influxdb-client-go v2 non-blocking
// API: they are batched per config (batch_size, flush_interval) and
// delivered in the background, with failures surfaced through the
// SetOnError callback. Nothing on the poll path ever waits on
// InfluxDB.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    client = nil // telemetry off
//	} else if err != nil {
//	    return err
//	}
//
//	client.WriteElementMetric("72623/121", "power", 235.0)
//
// All methods are safe for concurrent use.
package influxdb
