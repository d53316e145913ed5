package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Normalize converts a raw cell value into the canonical key form used
// throughout binding: integers of every width and integral floats become
// int64, other floats become float64, byte slices become strings. Strings,
// booleans and nil are returned unchanged; anything else is formatted.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return float64(x)
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// ToFloat converts a cell value to a number. Numeric strings are parsed.
func ToFloat(v any) (float64, bool) {
	switch x := Normalize(v).(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// IsNumeric reports whether v converts to a number without parsing text.
func IsNumeric(v any) bool {
	switch Normalize(v).(type) {
	case int64, float64:
		return true
	}
	return false
}

// Dedupe normalizes values and drops nils and repeats, keeping first-seen
// order.
func Dedupe(values []any) []any {
	seen := make(map[any]bool, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		v = Normalize(v)
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
