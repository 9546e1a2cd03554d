// Package medallion implements the tier processors that advance each entity
// through the Bronze, Silver, and Gold tables of a run. Bronze images the raw
// rows, Silver cleans and validates them, Gold adds correlation identity,
// resolved geography, derived scores, and the canonical embedding text.
//
// Processors communicate only through named store tables; each tier creates
// a new immutable table and returns a ProcessedTable record for it.
package medallion

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanText trims a long-form text field and collapses internal whitespace
// runs to single spaces.
func cleanText(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// normalizeArray lowercases, trims, deduplicates, and sorts the elements.
// Applying it twice yields the same result.
func normalizeArray(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ============================================================================
// Row-map accessors
// ============================================================================

// Store rows come back as map[string]any with driver-native scalar types.
// These accessors absorb the int64/float64/string variance between backends.

func rowString(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return ""
	}
}

func rowFloatPtr(row map[string]any, key string) *float64 {
	switch v := row[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func rowFloat(row map[string]any, key string) float64 {
	if p := rowFloatPtr(row, key); p != nil {
		return *p
	}
	return 0
}

func rowIntPtr(row map[string]any, key string) *int {
	switch v := row[key].(type) {
	case int64:
		n := int(v)
		return &n
	case int:
		return &v
	case float64:
		n := int(v)
		return &n
	default:
		return nil
	}
}

func rowInt64(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func rowBool(row map[string]any, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func rowTime(row map[string]any, key string) time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// rowStrings decodes a JSON array column. Null and malformed both read as
// the empty list; lists are never null past Bronze.
func rowStrings(row map[string]any, key string) []string {
	s := rowString(row, key)
	if s == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// rowJSON decodes a JSON struct column, nil when absent or malformed.
func rowJSON[T any](row map[string]any, key string) *T {
	s := rowString(row, key)
	if s == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return &v
}

// ============================================================================
// Row-map writers
// ============================================================================

// put sets a column only when the value is present; absent columns load as
// NULL. The generic pointer form keeps typed nils out of the row maps.
func put[T any](row map[string]any, key string, v *T) {
	if v != nil {
		row[key] = *v
	}
}

func putString(row map[string]any, key, v string) {
	if v != "" {
		row[key] = v
	}
}
