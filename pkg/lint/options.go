package lint

import "strings"

// Rule options arrive from YAML or JSON config, so numbers may be float64
// and lists may be []any. The getters below normalize those shapes and fall
// back to the default when a key is missing or has the wrong type.

func lookup(opts map[string]any, key string) (any, bool) {
	if opts == nil {
		return nil, false
	}
	v, ok := opts[key]
	return v, ok
}

// GetIntOption reads an integer option such as a complexity limit.
func GetIntOption(opts map[string]any, key string, defaultVal int) int {
	v, _ := lookup(opts, key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	}
	return defaultVal
}

// GetStringOption reads a string option.
func GetStringOption(opts map[string]any, key string, defaultVal string) string {
	if s, ok := lookupAs[string](opts, key); ok {
		return s
	}
	return defaultVal
}

// GetBoolOption reads a boolean option.
func GetBoolOption(opts map[string]any, key string, defaultVal bool) bool {
	if b, ok := lookupAs[bool](opts, key); ok {
		return b
	}
	return defaultVal
}

// GetStringSliceOption reads a list of names. A single string is split on
// commas so that "a, b" and [a, b] configure the same list.
func GetStringSliceOption(opts map[string]any, key string, defaultVal []string) []string {
	v, _ := lookup(opts, key)
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultVal
}

func lookupAs[T any](opts map[string]any, key string) (T, bool) {
	v, _ := lookup(opts, key)
	typed, ok := v.(T)
	return typed, ok
}
