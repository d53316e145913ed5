package binding

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/leapstack-labs/leapopt/pkg/table"
)

// source is one named input after assembly. Exactly one of its fields is
// set.
type source struct {
	name    string
	table   *table.Table
	seq     []any
	mapping map[any]any
	scalar  any
}

func (s *source) kind() string {
	switch {
	case s.table != nil:
		return "table"
	case s.seq != nil:
		return "sequence"
	case s.mapping != nil:
		return "mapping"
	}
	return "scalar"
}

// newSource copies a caller value into a source. Tables are immutable and
// shared; slices and maps are copied with normalized elements.
func newSource(name string, v any) (*source, error) {
	switch x := v.(type) {
	case *table.Table:
		if x == nil {
			return nil, fmt.Errorf("nil table")
		}
		return &source{name: name, table: x}, nil
	case nil:
		return nil, fmt.Errorf("nil value")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return &source{name: name, scalar: table.Normalize(v)}, nil
		}
		return &source{name: name, seq: copySeq(rv)}, nil
	case reflect.Map:
		return &source{name: name, mapping: copyMap(rv)}, nil
	}
	return &source{name: name, scalar: table.Normalize(v)}, nil
}

func copySeq(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = copyValue(rv.Index(i))
	}
	return out
}

func copyMap(rv reflect.Value) map[any]any {
	out := make(map[any]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[table.Normalize(iter.Key().Interface())] = copyValue(iter.Value())
	}
	return out
}

func copyValue(rv reflect.Value) any {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		return copyMap(rv)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return table.Normalize(rv.Interface())
		}
		return copySeq(rv)
	case reflect.Invalid:
		return nil
	}
	return table.Normalize(rv.Interface())
}

// sortedKeys orders mapping keys deterministically: numbers before strings,
// each in natural order.
func sortedKeys(m map[any]any) []any {
	keys := make([]any, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})
	return keys
}

func lessKey(a, b any) bool {
	fa, na := numeric(a)
	fb, nb := numeric(b)
	switch {
	case na && nb:
		return fa < fb
	case na != nb:
		return na
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
