package sandbox

import (
	"fmt"
	"math"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/binding"
	"github.com/leapstack-labs/leapopt/pkg/solver"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Module returns the "lp" module: problem construction, variable
// factories, linear aggregation, data helpers and numeric functions.
func Module() *starlarkstruct.Module {
	members := starlark.StringDict{
		"MINIMIZE":   starlark.String(solver.Minimize.String()),
		"MAXIMIZE":   starlark.String(solver.Maximize.String()),
		"CONTINUOUS": starlark.String(solver.Continuous.String()),
		"INTEGER":    starlark.String(solver.Integer.String()),
		"BINARY":     starlark.String(solver.Binary.String()),
	}
	for name, fn := range map[string]func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error){
		"problem":       lpProblem,
		"var":           lpVar,
		"var_dict":      lpVarDict,
		"lazy_vars":     lpLazyVars,
		"sum":           lpSum,
		"prod":          lpProd,
		"le":            relation(solver.LE),
		"ge":            relation(solver.GE),
		"eq":            relation(solver.EQ),
		"name":          lpName,
		"fill":          lpFill,
		"constant":      lpConstant,
		"range_set":     lpRangeSet,
		"union":         setOp("union"),
		"inter":         setOp("inter"),
		"diff":          setOp("diff"),
		"has_column":    lpHasColumn,
		"column_values": lpColumnValues,
		"param_table":   lpParamTable,
		"abs":           unary(math.Abs),
		"sqrt":          unary(math.Sqrt),
		"exp":           unary(math.Exp),
		"log":           unary(math.Log),
		"floor":         integral(math.Floor),
		"ceil":          integral(math.Ceil),
		"round":         lpRound,
		"pow":           lpPow,
		"min":           extreme(false),
		"max":           extreme(true),
	} {
		members[name] = starlark.NewBuiltin(name, fn)
	}
	return &starlarkstruct.Module{Name: "lp", Members: members}
}

func lpProblem(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, sense string
	sense = solver.Minimize.String()
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "sense?", &sense); err != nil {
		return nil, err
	}
	var s solver.Sense
	switch sense {
	case solver.Minimize.String():
		s = solver.Minimize
	case solver.Maximize.String():
		s = solver.Maximize
	default:
		return nil, fmt.Errorf("%s: unknown sense %q", b.Name(), sense)
	}
	return &Problem{p: solver.NewProblem(name, s)}, nil
}

// unpackSpec reads the cat, low and up keyword arguments.
func unpackSpec(fn string, cat string, low, up starlark.Value) (varSpec, error) {
	spec := varSpec{lower: 0, upper: math.Inf(1)}
	switch cat {
	case "", solver.Continuous.String():
		spec.cat = solver.Continuous
	case solver.Integer.String():
		spec.cat = solver.Integer
	case solver.Binary.String():
		spec.cat = solver.Binary
		spec.upper = 1
	default:
		return spec, fmt.Errorf("%s: unknown category %q", fn, cat)
	}
	bound := func(v starlark.Value, open float64, dst *float64) error {
		switch {
		case v == nil:
		case v == starlark.None:
			*dst = open
		default:
			f, ok := starlark.AsFloat(v)
			if !ok {
				return fmt.Errorf("%s: bound must be a number or None, got %s", fn, v.Type())
			}
			*dst = f
		}
		return nil
	}
	if err := bound(low, math.Inf(-1), &spec.lower); err != nil {
		return spec, err
	}
	if err := bound(up, math.Inf(1), &spec.upper); err != nil {
		return spec, err
	}
	return spec, nil
}

func lpVar(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name    string
		cat     string
		low, up starlark.Value
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "cat?", &cat, "low?", &low, "up?", &up); err != nil {
		return nil, err
	}
	spec, err := unpackSpec(b.Name(), cat, low, up)
	if err != nil {
		return nil, err
	}
	return spec.make(name), nil
}

func lpVarDict(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name    string
		sets    *starlark.List
		cat     string
		low, up starlark.Value
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "sets", &sets, "cat?", &cat, "low?", &low, "up?", &up); err != nil {
		return nil, err
	}
	spec, err := unpackSpec(b.Name(), cat, low, up)
	if err != nil {
		return nil, err
	}
	levels, err := elements(b.Name(), sets)
	if err != nil {
		return nil, err
	}
	return nestDict(levels, nil, func(keys []starlark.Value) starlark.Value {
		return spec.make(joinName(name, keys))
	})
}

func lpLazyVars(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name    string
		depth   int
		cat     string
		low, up starlark.Value
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "depth", &depth, "cat?", &cat, "low?", &low, "up?", &up); err != nil {
		return nil, err
	}
	if depth < 1 {
		return nil, fmt.Errorf("%s: depth must be positive", b.Name())
	}
	spec, err := unpackSpec(b.Name(), cat, low, up)
	if err != nil {
		return nil, err
	}
	return &LazyVars{name: name, depth: depth, spec: spec, cache: make(map[string]starlark.Value)}, nil
}

// elements expands a list of iterables into their elements.
func elements(fn string, sets *starlark.List) ([][]starlark.Value, error) {
	levels := make([][]starlark.Value, sets.Len())
	for i := 0; i < sets.Len(); i++ {
		iter := starlark.Iterate(sets.Index(i))
		if iter == nil {
			return nil, fmt.Errorf("%s: index set %d is a %s, not iterable", fn, i, sets.Index(i).Type())
		}
		var x starlark.Value
		for iter.Next(&x) {
			levels[i] = append(levels[i], x)
		}
		iter.Done()
	}
	return levels, nil
}

// nestDict builds one dict level per index set, calling leaf for every
// complete key tuple.
func nestDict(levels [][]starlark.Value, prefix []starlark.Value, leaf func([]starlark.Value) starlark.Value) (starlark.Value, error) {
	if len(levels) == 0 {
		return leaf(prefix), nil
	}
	dict := starlark.NewDict(len(levels[0]))
	for _, k := range levels[0] {
		keys := append(append([]starlark.Value(nil), prefix...), k)
		v, err := nestDict(levels[1:], keys, leaf)
		if err != nil {
			return nil, err
		}
		if err := dict.SetKey(k, v); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func joinName(base string, keys []starlark.Value) string {
	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, base)
	for _, k := range keys {
		parts = append(parts, keyString(k))
	}
	return strings.Join(parts, "_")
}

func lpName(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 || len(args) == 0 {
		return nil, fmt.Errorf("%s: want a base name and index keys", b.Name())
	}
	base, ok := starlark.AsString(args[0])
	if !ok {
		return nil, fmt.Errorf("%s: base name must be a string, got %s", b.Name(), args[0].Type())
	}
	return starlark.String(joinName(base, args[1:])), nil
}

// lpSum adds numbers and linear expressions. All-integer input stays an
// integer; all-number input stays a number.
func lpSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var items starlark.Iterable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &items); err != nil {
		return nil, err
	}
	var (
		exprs   []*solver.Expr
		linear  bool
		allInts = true
		total   = starlark.MakeInt(0)
	)
	iter := items.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		e, ok := toExpr(x)
		if !ok {
			return nil, fmt.Errorf("%s: cannot add %s", b.Name(), x.Type())
		}
		exprs = append(exprs, e)
		switch v := x.(type) {
		case *Affine:
			linear = true
		case starlark.Int:
			total = total.Add(v)
		default:
			allInts = false
		}
	}
	sum := solver.Sum(exprs...)
	switch {
	case linear:
		return &Affine{expr: sum}, nil
	case allInts:
		return total, nil
	}
	return starlark.Float(sum.Constant), nil
}

func lpProd(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var items starlark.Iterable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &items); err != nil {
		return nil, err
	}
	product := 1.0
	iter := items.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		if _, ok := x.(*Affine); ok {
			return nil, fmt.Errorf("%s: product over decision variables is nonlinear", b.Name())
		}
		f, ok := starlark.AsFloat(x)
		if !ok {
			return nil, fmt.Errorf("%s: cannot multiply %s", b.Name(), x.Type())
		}
		product *= f
	}
	return starlark.Float(product), nil
}

func relation(rel solver.Relation) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var lhs, rhs starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &lhs, &rhs); err != nil {
			return nil, err
		}
		l, ok := toExpr(lhs)
		if !ok {
			return nil, fmt.Errorf("%s: left side is a %s, not a linear expression", b.Name(), lhs.Type())
		}
		r, ok := toExpr(rhs)
		if !ok {
			return nil, fmt.Errorf("%s: right side is a %s, not a linear expression", b.Name(), rhs.Type())
		}
		return &Constraint{c: solver.NewConstraint(l, rel, r)}, nil
	}
}

func lpFill(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		sets *starlark.List
		def  starlark.Value
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &sets, &def); err != nil {
		return nil, err
	}
	levels, err := elements(b.Name(), sets)
	if err != nil {
		return nil, err
	}
	return nestDict(levels, nil, func([]starlark.Value) starlark.Value { return def })
}

func lpConstant(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		def   starlark.Value
		depth int
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &def, &depth); err != nil {
		return nil, err
	}
	if depth < 1 {
		return def, nil
	}
	return &constantMap{value: def, depth: depth}, nil
}

func lpRangeSet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var start, end int
	step := 1
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &start, &end, &step); err != nil {
		return nil, err
	}
	if step == 0 {
		return nil, fmt.Errorf("%s: step must not be zero", b.Name())
	}
	var out []starlark.Value
	for i := start; (step > 0 && i <= end) || (step < 0 && i >= end); i += step {
		out = append(out, starlark.MakeInt(i))
	}
	return starlark.NewList(out), nil
}

func setOp(op string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var left, right starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &left, &right); err != nil {
			return nil, err
		}
		l, err := toSlice(left)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		r, err := toSlice(right)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return GoToStarlark(binding.SetOp(op, l, r))
	}
}

func unpackTables(fn string, v starlark.Value) (*Tables, error) {
	t, ok := v.(*Tables)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want tables", fn, v.Type())
	}
	return t, nil
}

func lpHasColumn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		tv       starlark.Value
		tbl, col string
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &tv, &tbl, &col); err != nil {
		return nil, err
	}
	tables, err := unpackTables(b.Name(), tv)
	if err != nil {
		return nil, err
	}
	_, _, ok := tables.column(tbl, col)
	return starlark.Bool(ok), nil
}

func lpColumnValues(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		tv       starlark.Value
		tbl, col string
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &tv, &tbl, &col); err != nil {
		return nil, err
	}
	tables, err := unpackTables(b.Name(), tv)
	if err != nil {
		return nil, err
	}
	t, name, ok := tables.column(tbl, col)
	if !ok {
		return nil, fmt.Errorf("%s: no column %s.%s", b.Name(), tbl, col)
	}
	values, err := t.Unique(name)
	if err != nil {
		return nil, err
	}
	return GoToStarlark(values)
}

// lpParamTable reads a parameter from a table column the same way the
// binder does, densifying over the index sets when they are given. Data
// that matches none of the index elements is an error.
func lpParamTable(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		tv       starlark.Value
		tbl, col string
		indices  *starlark.List
		sets     starlark.Value
		def      starlark.Value
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 6, &tv, &tbl, &col, &indices, &sets, &def); err != nil {
		return nil, err
	}
	tables, err := unpackTables(b.Name(), tv)
	if err != nil {
		return nil, err
	}
	t, valueCol, ok := tables.column(tbl, col)
	if !ok {
		return nil, fmt.Errorf("%s: no column %s.%s", b.Name(), tbl, col)
	}
	names := make([]string, indices.Len())
	for i := range names {
		s, ok := starlark.AsString(indices.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s: index names must be strings", b.Name())
		}
		names[i] = s
	}

	ex, err := binding.FromTable(t, col, names, valueCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if len(names) == 0 {
		return GoToStarlark(ex.Scalar)
	}
	if sets == starlark.None {
		return GoToStarlark(ex.Data.Nest())
	}

	list, ok := sets.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("%s: index sets must be a list or None, got %s", b.Name(), sets.Type())
	}
	levels := make([][]any, list.Len())
	for i := range levels {
		if levels[i], err = toSlice(list.Index(i)); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
	}
	d, err := ToGo(def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	nested, hits := binding.Densify(levels, ex.Data, d)
	if !binding.Overlaps(levels, hits) {
		return nil, fmt.Errorf("%s: %s matches no element of the index sets: %w", b.Name(), ex.Origin(t), binding.ErrNoOverlap)
	}
	return GoToStarlark(nested)
}

// numeric returns the float value of a number argument, rejecting decision
// variables with a message naming the function.
func numeric(fn string, v starlark.Value) (float64, error) {
	if _, ok := v.(*Affine); ok {
		return 0, fmt.Errorf("%s of a decision variable is nonlinear", fn)
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s: got %s, want a number", fn, v.Type())
	}
	return f, nil
}

func unary(f func(float64) float64) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
			return nil, err
		}
		v, err := numeric(b.Name(), x)
		if err != nil {
			return nil, err
		}
		if i, ok := x.(starlark.Int); ok && b.Name() == "abs" {
			if i.Sign() < 0 {
				return starlark.MakeInt(0).Sub(i), nil
			}
			return i, nil
		}
		return starlark.Float(f(v)), nil
	}
}

func integral(f func(float64) float64) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
			return nil, err
		}
		v, err := numeric(b.Name(), x)
		if err != nil {
			return nil, err
		}
		return starlark.MakeInt64(int64(f(v))), nil
	}
}

func lpRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x      starlark.Value
		digits starlark.Value = starlark.None
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x, &digits); err != nil {
		return nil, err
	}
	v, err := numeric(b.Name(), x)
	if err != nil {
		return nil, err
	}
	if digits == starlark.None {
		return starlark.MakeInt64(int64(math.Round(v))), nil
	}
	n, err := numeric(b.Name(), digits)
	if err != nil {
		return nil, err
	}
	scale := math.Pow(10, math.Trunc(n))
	return starlark.Float(math.Round(v*scale) / scale), nil
}

func lpPow(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var base, exp starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &base, &exp); err != nil {
		return nil, err
	}
	e, err := numeric(b.Name(), exp)
	if err != nil {
		return nil, err
	}
	if a, ok := base.(*Affine); ok {
		switch e {
		case 1:
			return a, nil
		case 0:
			return starlark.MakeInt(1), nil
		}
		return nil, fmt.Errorf("%s of a decision variable is nonlinear", b.Name())
	}
	v, err := numeric(b.Name(), base)
	if err != nil {
		return nil, err
	}
	bi, baseInt := base.(starlark.Int)
	if baseInt && e >= 0 && e == math.Trunc(e) {
		result := starlark.MakeInt(1)
		for i := 0; i < int(e); i++ {
			result = result.Mul(bi)
		}
		return result, nil
	}
	return starlark.Float(math.Pow(v, e)), nil
}

func extreme(max bool) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		values := []starlark.Value(args)
		if len(args) == 1 {
			if iter := starlark.Iterate(args[0]); iter != nil {
				values = nil
				var x starlark.Value
				for iter.Next(&x) {
					values = append(values, x)
				}
				iter.Done()
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s: no values", b.Name())
		}
		var best starlark.Value
		bestF := 0.0
		for _, x := range values {
			f, err := numeric(b.Name(), x)
			if err != nil {
				return nil, err
			}
			if best == nil || (max && f > bestF) || (!max && f < bestF) {
				best, bestF = x, f
			}
		}
		return best, nil
	}
}
