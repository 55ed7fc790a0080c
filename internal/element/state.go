package element

// State holds the decoded, typed state of one element as a JSON map.
//
// The shape varies by class:
//   - Light: {"is_on": true, "brightness": 75}
//   - Shutter: {"is_opening": false, "is_closing": true}
//   - Power sensor: {"power": 1342.5}
//   - Inverter: {"grid_voltage": {"value": 225.0, "unit": "V"}, ...}
//
// Absent readings are stored as nil and marshal to JSON null.
type State map[string]any

// DeepCopy creates a complete independent copy of the state.
// Nested maps and slices are cloned so modifications to the copy do not
// affect the original.
func (s State) DeepCopy() State {
	if s == nil {
		return nil
	}
	cpy := make(State, len(s))
	for k, v := range s {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		cpy := make(map[string]any, len(val))
		for k, nested := range val {
			cpy[k] = deepCopyValue(nested)
		}
		return cpy
	case State:
		return map[string]any(val.DeepCopy())
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives are safe to copy by value
		return v
	}
}

// Merge returns a copy of s with the fields of overlay written over it.
// Used for optimistic fragment updates where only the predicted fields
// change and the rest of the state is retained.
func (s State) Merge(overlay State) State {
	merged := s.DeepCopy()
	if merged == nil {
		merged = make(State, len(overlay))
	}
	for k, v := range overlay {
		merged[k] = deepCopyValue(v)
	}
	return merged
}

// Bool returns the named field as a bool, or false if absent or not a
// bool.
func (s State) Bool(key string) bool {
	v, ok := s[key].(bool)
	return ok && v
}

// Float returns the named field as a float64. Integer-typed fields are
// widened. The second return is false if the field is absent, nil or
// non-numeric.
func (s State) Float(key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns the named field as an int. Float-typed fields are
// truncated. The second return is false if the field is absent, nil or
// non-numeric.
func (s State) Int(key string) (int, bool) {
	switch v := s[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// String returns the named field as a string, or ("", false) if absent
// or not a string.
func (s State) String(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}
