// Package fftype implements LibPolyCall's language-neutral type system (C7):
// wire-tag value encode/decode and a registered (source, target) converter
// table used by the protocol↔FFI bridge. The comma-ok safe-cast helpers below
// are carried over from the teacher's typeutil/safe.go unchanged in spirit —
// every higher-level converter in this package is built on top of them
// instead of raw type assertions.
package fftype

import "fmt"

// SafeString safely asserts value to string.
func SafeString(value any) (string, bool) {
	if value == nil {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// SafeInt safely asserts value to int, also accepting the numeric types a
// decoded wire value or a JSON-sourced object field commonly arrives as.
func SafeInt(value any) (int, bool) {
	if value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}

// SafeFloat64 safely asserts value to float64.
func SafeFloat64(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// SafeBool safely asserts value to bool.
func SafeBool(value any) (bool, bool) {
	if value == nil {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// SafeBytes safely asserts value to []byte.
func SafeBytes(value any) ([]byte, bool) {
	if value == nil {
		return nil, false
	}
	b, ok := value.([]byte)
	return b, ok
}

// SafeMapStringAny safely asserts value to map[string]any, the representation
// used for TagObject and TagStruct values.
func SafeMapStringAny(value any) (map[string]any, bool) {
	if value == nil {
		return nil, false
	}
	m, ok := value.(map[string]any)
	return m, ok
}

// SafeSlice safely asserts value to []any, the representation used for TagArray values.
func SafeSlice(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	s, ok := value.([]any)
	return s, ok
}

// MustString asserts value to string or panics with a descriptive error. Used
// only at call sites that have already validated the tag, e.g. after a
// Convert call into TagString has already succeeded.
func MustString(value any, context string) string {
	if s, ok := SafeString(value); ok {
		return s
	}
	panic(fmt.Sprintf("fftype.MustString: expected string, got %T at %s", value, context))
}

// GetNestedValue walks a dot-separated path through nested map[string]any
// values, used to address fields inside a TagObject/TagStruct payload.
func GetNestedValue(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	keys := splitPath(path)
	current := any(data)

	for _, key := range keys {
		m, ok := SafeMapStringAny(current)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	result := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			if i > start {
				result = append(result, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		result = append(result, path[start:])
	}
	return result
}
