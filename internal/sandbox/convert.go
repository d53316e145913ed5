package sandbox

import (
	"fmt"
	"math"
	"sort"

	"github.com/leapstack-labs/leapopt/pkg/table"
	"go.starlark.net/starlark"
)

// GoToStarlark converts a bound Go value to a Starlark value.
// Supported types: nil, string, bool, integers, float64, []any, []string,
// map[any]any and map[string]any. Mapping keys are inserted in sorted order
// so dict iteration is deterministic.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil

	case string:
		return starlark.String(val), nil

	case bool:
		return starlark.Bool(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[any]any:
		keys := make([]any, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sk, err := GoToStarlark(k)
			if err != nil {
				return nil, fmt.Errorf("dict key %v: %w", k, err)
			}
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %v: %w", k, err)
			}
			if err := dict.SetKey(sk, sv); err != nil {
				return nil, fmt.Errorf("dict setkey %v: %w", k, err)
			}
		}
		return dict, nil

	case map[string]any:
		m := make(map[any]any, len(val))
		for k, x := range val {
			m[k] = x
		}
		return GoToStarlark(m)

	default:
		n := table.Normalize(v)
		switch n.(type) {
		case int64, float64, string:
			return GoToStarlark(n)
		}
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Starlark value back to a Go value. Numbers are
// normalized the way table values are, so keys from either side compare
// equal.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", val)
		}
		return i64, nil

	case starlark.Float:
		return table.Normalize(float64(val)), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.Dict:
		result := make(map[any]any, val.Len())
		for _, item := range val.Items() {
			k, err := ToGo(item[0])
			if err != nil {
				return nil, fmt.Errorf("dict key %s: %w", item[0], err)
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %s: %w", item[0], err)
			}
			result[k] = gv
		}
		return result, nil

	case starlark.Iterable:
		var result []any
		iter := val.Iterate()
		defer iter.Done()
		var item starlark.Value
		for i := 0; iter.Next(&item); i++ {
			gv, err := ToGo(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result = append(result, gv)
		}
		if result == nil {
			result = []any{}
		}
		return result, nil

	default:
		return nil, fmt.Errorf("cannot convert %s to a data value", v.Type())
	}
}

// toSlice converts an iterable of elements to Go values.
func toSlice(v starlark.Value) ([]any, error) {
	g, err := ToGo(v)
	if err != nil {
		return nil, err
	}
	switch s := g.(type) {
	case []any:
		return s, nil
	case map[any]any:
		keys := make([]any, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
		return keys, nil
	}
	return nil, fmt.Errorf("%s is not iterable", v.Type())
}

func lessKey(a, b any) bool {
	fa, na := number(a)
	fb, nb := number(b)
	switch {
	case na && nb:
		return fa < fb
	case na != nb:
		return na
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return math.NaN(), false
}
