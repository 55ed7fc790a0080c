// Package domo implements the HTTP/XML protocol client for the Domo
// automation panel.
//
// The panel exposes a small set of XML endpoints over HTTP with basic
// authentication:
//
//	GET /api/maps.xml                         topology root (scene list)
//	GET /api/maps/{sceneId}.xml               one scene's element list
//	GET /api/element_xml_statuses.xml         bulk status document
//	GET /api/element_xml_statuses/{id}.xml    single-element status
//	GET /elements/{id}?_method=put&action=... command dispatch
//
// TLS certificate validation is disabled by design: panels sit on
// private networks with self-signed or absent certificates.
//
// # Concurrency
//
// All requests across discovery, polling and command paths share one
// admission semaphore (default 3 in-flight requests) so the panel's
// modest embedded web server is never overloaded. Additional callers
// queue in arrival order.
//
// # Error Taxonomy
//
// Failures wrap one of three sentinels: ErrAuth (HTTP 401), ErrTransport
// (timeout or connection failure) and ErrProtocol (unexpected status,
// non-XML or unparsable body). None are retried internally; the next
// poll cycle or user command is the retry mechanism.
//
// # Commands
//
// SendAction encodes the panel's imperative command grammar. The typed
// helpers in commands.go cover the known action vocabulary per element
// class; the success policy is deliberately lenient because many panel
// firmwares return empty or non-XML bodies for accepted commands.
package domo
