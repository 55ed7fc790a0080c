// Package api is the bridge's HTTP and WebSocket surface.
//
// REST endpoints under /api/v1 expose the element catalog, live
// state, command execution, state history, energy totals and system
// health. A WebSocket at /api/v1/ws relays the bridge's own MQTT
// publications as subscription channels, for dashboards that do not
// speak MQTT.
//
// The server sits beside the MQTT surface rather than in front of
// it: reads come from the polled state store, commands run through
// the same execution path the MQTT set topics use, and the relay only
// mirrors what was already published. Element ids appear in URLs in
// their encoded form (72623_119), matching the topic segments.
//
// There is no authentication. This is a LAN diagnostic surface and
// must not be exposed beyond the local network.
//
// The server also runs without a broker connection: reads and
// commands keep working, only the WebSocket relay goes silent.
package api
