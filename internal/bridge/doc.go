// Package bridge connects the panel's element model to MQTT.
//
// The Bridge sits between the poll coordinator and the broker: each
// successful cycle's states are published retained to per-element
// state topics, with active hold windows overlaid and shutter
// positions estimated before serialization. Commands arrive on the
// matching set topics as small JSON payloads, are resolved through a
// class-aware action table into the panel's typed vocabulary, and run
// the predict/send/verify protocol so consumers see effects
// immediately and panel truth shortly after.
//
// The bridge also carries the daemon's persistence glue: the
// discovered catalog is upserted at startup with configured custom
// names applied, energy totals are seeded from the database and
// flushed back periodically and on shutdown, and every published state
// change lands in the local history table. When a time-series client
// is configured, power and energy telemetry is forwarded on each
// cycle.
package bridge
