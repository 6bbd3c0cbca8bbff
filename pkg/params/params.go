// Package params decodes hyperparameter groups. The hosting platform
// stringifies every hyperparameter value, so each getter accepts both the
// JSON-typed value and its string spelling. Keys may have aliases; the first
// alias present wins.
package params

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// Group is one decoded hyperparameter group.
type Group map[string]any

// lookup returns the value of the first key present.
func (g Group) lookup(keys ...string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := g[k]; ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

// Has reports whether any of keys is set.
func (g Group) Has(keys ...string) bool {
	_, _, ok := g.lookup(keys...)
	return ok
}

// Keys returns the group's keys in sorted order.
func (g Group) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value stringified, or def when absent. Non-string
// scalars are formatted the way JSON would print them.
func (g Group) String(def string, keys ...string) string {
	_, v, ok := g.lookup(keys...)
	if !ok {
		return def
	}
	return Stringify(v)
}

// Int decodes an integer value.
func (g Group) Int(def int, keys ...string) (int, error) {
	key, v, ok := g.lookup(keys...)
	if !ok {
		return def, nil
	}
	f, err := toFloat(v)
	if err != nil || f != float64(int(f)) {
		return def, errors.NewValidationError(key, "must be an integer", v)
	}
	return int(f), nil
}

// Float decodes a floating point value.
func (g Group) Float(def float64, keys ...string) (float64, error) {
	key, v, ok := g.lookup(keys...)
	if !ok {
		return def, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return def, errors.NewValidationError(key, "must be a number", v)
	}
	return f, nil
}

// Bool is true when the stringified value equals "true" (case-insensitive).
func (g Group) Bool(keys ...string) bool {
	return strings.EqualFold(g.String("", keys...), "true")
}

// StringList decodes a JSON list, a string holding a JSON list, or a
// comma-separated string.
func (g Group) StringList(keys ...string) ([]string, error) {
	key, v, ok := g.lookup(keys...)
	if !ok {
		return nil, nil
	}
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, Stringify(item))
		}
		return out, nil
	case []string:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if strings.HasPrefix(s, "[") {
			var out []string
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, errors.NewValidationError(key, "must be a list of strings", v)
			}
			return out, nil
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, errors.NewValidationError(key, "must be a list of strings", v)
	}
}

// Stringify formats a decoded JSON scalar.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, errors.Newf("unsupported type %T", v)
	}
}
