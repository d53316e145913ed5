package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/solver"
	"github.com/leapstack-labs/leapopt/pkg/table"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Affine is a linear expression value. A decision variable is an Affine
// with a single unit term and its name set.
type Affine struct {
	expr *solver.Expr
	v    *solver.Variable // set for plain variables
}

var (
	_ starlark.HasBinary = (*Affine)(nil)
	_ starlark.HasUnary  = (*Affine)(nil)
)

func newVariable(v *solver.Variable) *Affine {
	return &Affine{expr: solver.VarExpr(v), v: v}
}

// Expr returns the underlying expression.
func (a *Affine) Expr() *solver.Expr { return a.expr }

func (a *Affine) String() string {
	if a.v != nil {
		return a.v.Name
	}
	return a.expr.String()
}

// Type implements starlark.Value.
func (a *Affine) Type() string {
	if a.v != nil {
		return "lp.var"
	}
	return "lp.expr"
}

// Freeze implements starlark.Value.
func (a *Affine) Freeze() {}

// Truth implements starlark.Value.
func (a *Affine) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (a *Affine) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", a.Type())
}

// Binary implements starlark.HasBinary.
func (a *Affine) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	other, ok := toExpr(y)
	if !ok {
		return nil, nil
	}
	switch op {
	case syntax.PLUS:
		return &Affine{expr: a.expr.Add(other)}, nil
	case syntax.MINUS:
		if side == starlark.Left {
			return &Affine{expr: a.expr.Sub(other)}, nil
		}
		return &Affine{expr: other.Sub(a.expr)}, nil
	case syntax.STAR:
		if !other.IsConstant() {
			return nil, fmt.Errorf("product of %s and %s is nonlinear", a, y)
		}
		return &Affine{expr: a.expr.Scale(other.Constant)}, nil
	case syntax.SLASH:
		if side == starlark.Right {
			return nil, fmt.Errorf("division by an expression of decision variables is nonlinear")
		}
		if !other.IsConstant() {
			return nil, fmt.Errorf("division of %s by %s is nonlinear", a, y)
		}
		if other.Constant == 0 {
			return nil, fmt.Errorf("floating-point division by zero")
		}
		return &Affine{expr: a.expr.Scale(1 / other.Constant)}, nil
	}
	return nil, nil
}

// Unary implements starlark.HasUnary.
func (a *Affine) Unary(op syntax.Token) (starlark.Value, error) {
	switch op {
	case syntax.MINUS:
		return &Affine{expr: a.expr.Scale(-1)}, nil
	case syntax.PLUS:
		return a, nil
	}
	return nil, nil
}

// toExpr converts a number or Affine to an expression.
func toExpr(v starlark.Value) (*solver.Expr, bool) {
	if a, ok := v.(*Affine); ok {
		return a.expr, true
	}
	if _, isBool := v.(starlark.Bool); isBool {
		return nil, false
	}
	if f, ok := starlark.AsFloat(v); ok {
		return solver.Const(f), true
	}
	return nil, false
}

// Constraint is a relation produced by lp.le, lp.ge or lp.eq.
type Constraint struct {
	c *solver.Constraint
}

func (c *Constraint) String() string        { return c.c.String() }
func (c *Constraint) Type() string          { return "lp.constraint" }
func (c *Constraint) Freeze()               {}
func (c *Constraint) Truth() starlark.Bool  { return starlark.True }
func (c *Constraint) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: lp.constraint") }

// Problem wraps the problem under construction. Its add and objective
// methods are the only way programs mutate it.
type Problem struct {
	p *solver.Problem
}

var _ starlark.HasAttrs = (*Problem)(nil)

func (p *Problem) String() string        { return fmt.Sprintf("<lp.problem %s>", p.p.Name) }
func (p *Problem) Type() string          { return "lp.problem" }
func (p *Problem) Freeze()               {}
func (p *Problem) Truth() starlark.Bool  { return starlark.True }
func (p *Problem) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: lp.problem") }

// Attr implements starlark.HasAttrs.
func (p *Problem) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(p.p.Name), nil
	case "sense":
		return starlark.String(p.p.Sense.String()), nil
	case "add":
		return starlark.NewBuiltin("add", p.add).BindReceiver(p), nil
	case "objective":
		return starlark.NewBuiltin("objective", p.objective).BindReceiver(p), nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (p *Problem) AttrNames() []string {
	return []string{"add", "name", "objective", "sense"}
}

func (p *Problem) add(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var c, name starlark.Value = nil, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "constraint", &c, "name?", &name); err != nil {
		return nil, err
	}
	cons, ok := c.(*Constraint)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want lp.constraint (use lp.le, lp.ge or lp.eq)", b.Name(), c.Type())
	}
	label := ""
	if name != starlark.None {
		s, ok := starlark.AsString(name)
		if !ok {
			return nil, fmt.Errorf("%s: name must be a string, got %s", b.Name(), name.Type())
		}
		label = s
	}
	added := &solver.Constraint{Expr: cons.c.Expr, Relation: cons.c.Relation}
	if err := p.p.AddConstraint(added, label); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.None, nil
}

func (p *Problem) objective(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var e starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &e); err != nil {
		return nil, err
	}
	expr, ok := toExpr(e)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want a number or linear expression", b.Name(), e.Type())
	}
	p.p.SetObjective(expr)
	return starlark.None, nil
}

// varSpec holds the category and bounds shared by variable constructors.
type varSpec struct {
	cat   solver.Category
	lower float64
	upper float64
}

func (s varSpec) make(name string) *Affine {
	return newVariable(solver.NewVariable(name, s.cat, s.lower, s.upper))
}

// LazyVars creates variables on first access. Indexing with depth keys
// yields a variable named after the base and the keys; fewer keys yield a
// nested LazyVars. Repeated access returns the same variable.
type LazyVars struct {
	name   string
	depth  int
	prefix []string
	spec   varSpec
	cache  map[string]starlark.Value
}

var _ starlark.Mapping = (*LazyVars)(nil)

func (l *LazyVars) String() string        { return fmt.Sprintf("<lp.lazy_vars %s>", l.key()) }
func (l *LazyVars) Type() string          { return "lp.lazy_vars" }
func (l *LazyVars) Freeze()               {}
func (l *LazyVars) Truth() starlark.Bool  { return starlark.True }
func (l *LazyVars) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: lp.lazy_vars") }

func (l *LazyVars) key() string {
	return strings.Join(append([]string{l.name}, l.prefix...), "_")
}

// Get implements starlark.Mapping.
func (l *LazyVars) Get(k starlark.Value) (starlark.Value, bool, error) {
	prefix := append(append([]string(nil), l.prefix...), keyString(k))
	next := &LazyVars{name: l.name, depth: l.depth, prefix: prefix, spec: l.spec, cache: l.cache}
	key := next.key()
	if v, ok := l.cache[key]; ok {
		return v, true, nil
	}
	var v starlark.Value = next
	if len(prefix) >= l.depth {
		v = l.spec.make(key)
	}
	l.cache[key] = v
	return v, true, nil
}

// constantMap answers every key with a nested constantMap or, at the last
// level, a fixed value.
type constantMap struct {
	value starlark.Value
	depth int
}

var _ starlark.Mapping = (*constantMap)(nil)

func (c *constantMap) String() string        { return fmt.Sprintf("<lp.constant %s>", c.value) }
func (c *constantMap) Type() string          { return "lp.constant" }
func (c *constantMap) Freeze()               {}
func (c *constantMap) Truth() starlark.Bool  { return starlark.True }
func (c *constantMap) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: lp.constant") }

// Get implements starlark.Mapping.
func (c *constantMap) Get(starlark.Value) (starlark.Value, bool, error) {
	if c.depth <= 1 {
		return c.value, true, nil
	}
	return &constantMap{value: c.value, depth: c.depth - 1}, true, nil
}

// Tables exposes the tabular inputs to programs. It is opaque: programs
// read it only through lp functions.
type Tables struct {
	tables map[string]*table.Table
}

func (t *Tables) String() string {
	names := make([]string, 0, len(t.tables))
	for name := range t.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("<tables %s>", strings.Join(names, ", "))
}
func (t *Tables) Type() string          { return "tables" }
func (t *Tables) Freeze()               {}
func (t *Tables) Truth() starlark.Bool  { return starlark.Bool(len(t.tables) > 0) }
func (t *Tables) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: tables") }

// column resolves a table column, matching names case-insensitively.
func (t *Tables) column(tbl, col string) (*table.Table, string, bool) {
	tb, ok := t.tables[tbl]
	if !ok {
		return nil, "", false
	}
	name, ok := tb.Lookup(col)
	return tb, name, ok
}

// keyString renders an index key for variable and constraint names.
func keyString(v starlark.Value) string {
	switch k := v.(type) {
	case starlark.String:
		return string(k)
	case starlark.Float:
		f := float64(k)
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return fmt.Sprintf("%d", int64(f))
		}
		return fmt.Sprintf("%g", f)
	}
	return v.String()
}
