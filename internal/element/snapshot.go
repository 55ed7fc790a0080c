package element

import (
	"strconv"
	"strings"
)

// Snapshot holds the raw status facts reported for one element in one
// poll: a map from status key to either a text value or an absence
// marker (nil) for presence-only flags such as "isswitchedon".
//
// Keys are stored lowercased; all lookups are case-insensitive and
// return the first match among the provided name aliases. Snapshots are
// transient: produced fresh per poll cycle and discarded after decoding.
type Snapshot map[string]*string

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return make(Snapshot)
}

// SetValue records a status key carrying an explicit text value.
func (s Snapshot) SetValue(key, value string) {
	v := value
	s[strings.ToLower(key)] = &v
}

// SetFlag records a presence-only status key with no value.
func (s Snapshot) SetFlag(key string) {
	s[strings.ToLower(key)] = nil
}

// Has reports whether at least one of the names is present as a key,
// with or without a value.
func (s Snapshot) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := s[strings.ToLower(name)]; ok {
			return true
		}
	}
	return false
}

// Value returns the first value found among the given name aliases.
// Presence-only keys are skipped; an explicitly empty value is returned
// as ("", true).
func (s Snapshot) Value(names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := s[strings.ToLower(name)]; ok && v != nil {
			return *v, true
		}
	}
	return "", false
}

// Float returns the first value among the aliases parsed as a float64,
// or nil if no alias carries a parsable value. The nil return maps to a
// JSON null in published state.
func (s Snapshot) Float(names ...string) any {
	v, ok := s.Value(names...)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return f
}

// Int returns the first value among the aliases parsed as an int, or
// nil if no alias carries a parsable value. Fractional values are
// truncated, matching the panel's own integer handling.
func (s Snapshot) Int(names ...string) any {
	v, ok := s.Value(names...)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return int(f)
}
