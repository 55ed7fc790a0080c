package mqtt

import (
	"fmt"
	"strings"
)

// DefaultBaseTopic is the topic root used when mqtt.base_topic is not set.
const DefaultBaseTopic = "domobridge"

// Topics builds Domo Bridge MQTT topic names under a configurable base.
// Using these helpers ensures consistent topic naming across the codebase.
//
// The scheme is:
//
//	{base}/element/{id}/state   retained, normalized element state
//	{base}/element/{id}/set     command intake
//	{base}/bridge/status        retained, online/offline availability (LWT)
//	{base}/bridge/cycle         poll cycle results
//	{base}/bridge/refresh       on-demand refresh requests
//
// Panel element ids are slash-separated paths ("72623/119"); a raw "/"
// would introduce extra topic levels, so ids are encoded with
// EncodeElementID before being embedded in a topic segment.
type Topics struct {
	base string
}

// NewTopics returns a topic builder rooted at base.
// An empty base falls back to DefaultBaseTopic.
func NewTopics(base string) Topics {
	base = strings.Trim(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseTopic
	}
	return Topics{base: base}
}

// Base returns the configured topic root.
func (t Topics) Base() string {
	if t.base == "" {
		return DefaultBaseTopic
	}
	return t.base
}

// EncodeElementID maps a panel element id onto a single topic segment
// by replacing path separators with underscores.
//
// The mapping is not reversible in general (ids may contain literal
// underscores); callers that route incoming topics back to elements keep
// an encoded-id lookup built from the catalog.
func EncodeElementID(elementID string) string {
	return strings.ReplaceAll(elementID, "/", "_")
}

// =============================================================================
// Element Topics
// =============================================================================

// ElementState returns the retained state topic for an element.
//
// Example: domobridge/element/72623_119/state
func (t Topics) ElementState(elementID string) string {
	return fmt.Sprintf("%s/element/%s/state", t.Base(), EncodeElementID(elementID))
}

// ElementSet returns the command intake topic for an element.
//
// Example: domobridge/element/72623_119/set
func (t Topics) ElementSet(elementID string) string {
	return fmt.Sprintf("%s/element/%s/set", t.Base(), EncodeElementID(elementID))
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus returns the bridge availability topic.
// Published retained, and registered as the LWT topic so consumers see
// "offline" on unexpected disconnects.
//
// Example: domobridge/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.Base())
}

// BridgeCycle returns the poll cycle result topic.
//
// Example: domobridge/bridge/cycle
func (t Topics) BridgeCycle() string {
	return fmt.Sprintf("%s/bridge/cycle", t.Base())
}

// BridgeRefresh returns the on-demand refresh request topic.
//
// Example: domobridge/bridge/refresh
func (t Topics) BridgeRefresh() string {
	return fmt.Sprintf("%s/bridge/refresh", t.Base())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllElementSets returns a pattern matching every element command topic.
//
// Pattern: domobridge/element/+/set
func (t Topics) AllElementSets() string {
	return fmt.Sprintf("%s/element/+/set", t.Base())
}

// AllElementStates returns a pattern matching every element state topic.
//
// Pattern: domobridge/element/+/state
func (t Topics) AllElementStates() string {
	return fmt.Sprintf("%s/element/+/state", t.Base())
}

// AllTopics returns a pattern matching all Domo Bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: domobridge/#
func (t Topics) AllTopics() string {
	return t.Base() + "/#"
}

// ElementIDSegment extracts the encoded element id from an element topic
// ({base}/element/{id}/state or .../set). It returns the raw encoded
// segment, or "" when the topic does not match the element scheme.
func (t Topics) ElementIDSegment(topic string) string {
	rest, ok := strings.CutPrefix(topic, t.Base()+"/element/")
	if !ok {
		return ""
	}
	segment, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return segment
}
