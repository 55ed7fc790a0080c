// Package element provides the domain model for Domo panel elements.
//
// An element is one controllable or observable unit on the panel (a light,
// shutter, sensor, thermostat, etc.), identified by a stable id and
// classified by a class string assigned by the panel firmware. The panel
// groups elements into scenes, which roughly correspond to rooms or zones.
//
// # Key Types
//
//   - Element: identity, class and scene membership of one panel unit
//   - Catalog: the flat id -> Element map built by discovery
//   - Class: closed enumeration of the panel classes this bridge understands
//   - Snapshot: the raw status key/value facts reported for one element
//   - State: the typed, decoded state record published for one element
//
// # Decoding
//
// Each supported class has a decoder, a pure function from Snapshot to
// State. Decoders look keys up case-insensitively and tolerate missing or
// malformed values; absent readings decode to nil rather than failing.
// Dispatch is through a static class -> decoder table (see Decode).
//
// Elements whose class carries no decoder produce no state. Two panel
// classes (web page widgets and virtual keypads) are ignored outright and
// never enter the catalog.
//
// # Persistence
//
// Repository persists the discovered catalog so custom names survive
// restarts. StateHistoryRepository keeps a bounded local audit trail of
// decoded state changes.
package element
