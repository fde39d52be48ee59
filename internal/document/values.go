// internal/document/values.go
package document

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// DeepCopy copies a JSON-shaped value. Records and sequences are copied
// recursively; scalars are returned as is.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = DeepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = DeepCopy(child)
		}
		return out
	default:
		return v
	}
}

// Normalize returns an owned, JSON-shaped copy of v. Numbers become float64,
// so a tree survives a JSON round trip unchanged. Typed values such as a
// Scene or a []string go through a JSON round trip.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return v, nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("normalize number %q: %w", t, err)
		}
		return f, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	return out, nil
}

// EqualValues compares two JSON-shaped values deeply.
func EqualValues(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
