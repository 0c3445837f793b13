package vectorstore

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// FilterError describes a filter value that no backend can evaluate.
type FilterError struct {
	Key    string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Key, e.Reason)
}

// ValidateFilters checks that every filter value is a string, a bool, a finite
// number, or a non-empty list of strings or of integers. It returns a
// *FilterError for the first offending key in sorted order.
func ValidateFilters(filters map[string]any) error {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reason := filterValueProblem(filters[key]); reason != "" {
			return &FilterError{Key: key, Reason: reason}
		}
	}
	return nil
}

func filterValueProblem(value any) string {
	if list, ok := toList(value); ok {
		if len(list) == 0 {
			return "empty list"
		}
		if _, isString := list[0].(string); isString {
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return "list mixes strings and other values"
				}
			}
			return ""
		}
		for _, item := range list {
			if _, ok := toInt64(item); !ok {
				return "list elements must be strings or integers"
			}
		}
		return ""
	}

	switch value.(type) {
	case string, bool:
		return ""
	}
	if f, ok := toFloat(value); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return ""
	}
	return fmt.Sprintf("unsupported value type %T", value)
}

// Matches reports whether meta satisfies every filter.
//
// A scalar filter matches a scalar value by equality, with numbers compared by
// value regardless of their Go type, and matches a list value by membership.
// A list filter matches when any of its elements matches.
func Matches(meta map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if !matchValue(got, want) {
			return false
		}
	}
	return true
}

func matchValue(got, want any) bool {
	if wants, ok := toList(want); ok {
		for _, w := range wants {
			if matchValue(got, w) {
				return true
			}
		}
		return false
	}

	if gots, ok := toList(got); ok {
		for _, g := range gots {
			if scalarEqual(g, want) {
				return true
			}
		}
		return false
	}

	return scalarEqual(got, want)
}

func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if !isComparable(a) || !isComparable(b) {
		return false
	}
	return a == b
}

func isComparable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

// toList returns the elements of the slice types that can appear in metadata or filters.
func toList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// toInt64 converts integral numbers to int64.
func toInt64(v any) (int64, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// normalizeMeta converts metadata to the value types stored by the backends:
// integers become int64 and string slices become []any.
func normalizeMeta(meta map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case nil, string, bool, int64, float64:
			out[k] = val
		case int:
			out[k] = int64(val)
		case int32:
			out[k] = int64(val)
		case float32:
			out[k] = float64(val)
		default:
			list, ok := toList(val)
			if !ok {
				return nil, fmt.Errorf("unsupported metadata type %T for key %q", v, k)
			}
			items := make([]any, len(list))
			for i, item := range list {
				if n, ok := item.(int); ok {
					item = int64(n)
				}
				items[i] = item
			}
			out[k] = items
		}
	}
	return out, nil
}
