// Package mapsafe reads typed values out of loosely typed bridge payloads
// (decoded JSON or protobuf Struct values).
package mapsafe

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	if v, ok := Lookup[T](m, key); ok {
		return v
	}
	return defaultValue
}

// Lookup retrieves a typed value and reports whether the key was present with a
// convertible type.
func Lookup[T any](m map[string]any, key string) (T, bool) {
	var zero T
	val, ok := m[key]
	if !ok || val == nil {
		return zero, false
	}

	switch any(zero).(type) {
	case int:
		switch x := val.(type) {
		case int:
			return any(x).(T), true
		case int64:
			return any(int(x)).(T), true
		case float64:
			return any(int(x)).(T), true
		}
	case float64:
		switch x := val.(type) {
		case float64:
			return any(x).(T), true
		case float32:
			return any(float64(x)).(T), true
		case int:
			return any(float64(x)).(T), true
		case int64:
			return any(float64(x)).(T), true
		}
	case string:
		if s, ok := val.(string); ok {
			return any(s).(T), true
		}
	case bool:
		if b, ok := val.(bool); ok {
			return any(b).(T), true
		}
	default:
		// fallback: if type matches exactly
		if v2, ok := val.(T); ok {
			return v2, true
		}
	}
	return zero, false
}

// Has reports whether key is present with a non-nil value.
func Has(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// Map returns the nested object under key.
func Map(m map[string]any, key string) (map[string]any, bool) {
	return Lookup[map[string]any](m, key)
}

// Slice returns the array under key.
func Slice(m map[string]any, key string) ([]any, bool) {
	return Lookup[[]any](m, key)
}

// Strings returns the array under key, keeping only string elements. The
// second result is false if the key is missing or any element is not a string.
func Strings(m map[string]any, key string) ([]string, bool) {
	raw, ok := Slice(m, key)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Ptr returns a pointer to the typed value under key, or nil when absent.
func Ptr[T any](m map[string]any, key string) *T {
	if v, ok := Lookup[T](m, key); ok {
		return &v
	}
	return nil
}
