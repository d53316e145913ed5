package solver

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Category is the value domain of a variable.
type Category int

// Variable categories.
const (
	Continuous Category = iota
	Integer
	Binary
)

func (c Category) String() string {
	switch c {
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	}
	return "continuous"
}

// IsIntegral reports whether values of the category must be whole numbers.
func (c Category) IsIntegral() bool {
	return c == Integer || c == Binary
}

var nextSeq atomic.Uint64

// Variable is a decision variable. Infinite bounds are math.Inf values.
type Variable struct {
	Name     string
	Category Category
	Lower    float64
	Upper    float64
	seq      uint64
}

// NewVariable creates a variable. Binary variables are clamped to [0, 1].
func NewVariable(name string, cat Category, lower, upper float64) *Variable {
	if cat == Binary {
		lower = math.Max(lower, 0)
		upper = math.Min(upper, 1)
	}
	return &Variable{
		Name:     name,
		Category: cat,
		Lower:    lower,
		Upper:    upper,
		seq:      nextSeq.Add(1),
	}
}

// Term is one coefficient-variable product.
type Term struct {
	Var  *Variable
	Coef float64
}

// Expr is an affine expression over variables. Exprs are immutable; every
// operation returns a new one.
type Expr struct {
	terms    map[*Variable]float64
	Constant float64
}

// Const returns a constant expression.
func Const(c float64) *Expr {
	return &Expr{Constant: c}
}

// VarExpr returns the expression 1*v.
func VarExpr(v *Variable) *Expr {
	return &Expr{terms: map[*Variable]float64{v: 1}}
}

func (e *Expr) clone() *Expr {
	out := &Expr{terms: make(map[*Variable]float64, len(e.terms)), Constant: e.Constant}
	for v, c := range e.terms {
		out.terms[v] = c
	}
	return out
}

func (e *Expr) addScaled(o *Expr, k float64) {
	if e.terms == nil {
		e.terms = make(map[*Variable]float64, len(o.terms))
	}
	for v, c := range o.terms {
		sum := e.terms[v] + k*c
		if sum == 0 {
			delete(e.terms, v)
			continue
		}
		e.terms[v] = sum
	}
	e.Constant += k * o.Constant
}

// Add returns e + o.
func (e *Expr) Add(o *Expr) *Expr {
	out := e.clone()
	out.addScaled(o, 1)
	return out
}

// Sub returns e - o.
func (e *Expr) Sub(o *Expr) *Expr {
	out := e.clone()
	out.addScaled(o, -1)
	return out
}

// Scale returns k*e.
func (e *Expr) Scale(k float64) *Expr {
	out := &Expr{Constant: k * e.Constant}
	if k == 0 {
		return out
	}
	out.terms = make(map[*Variable]float64, len(e.terms))
	for v, c := range e.terms {
		out.terms[v] = k * c
	}
	return out
}

// Sum adds expressions in a single pass.
func Sum(exprs ...*Expr) *Expr {
	out := &Expr{}
	for _, e := range exprs {
		out.addScaled(e, 1)
	}
	return out
}

// IsConstant reports whether e has no variable terms.
func (e *Expr) IsConstant() bool {
	return len(e.terms) == 0
}

// Coef returns the coefficient of v.
func (e *Expr) Coef(v *Variable) float64 {
	return e.terms[v]
}

// Terms returns the variable terms in variable creation order.
func (e *Expr) Terms() []Term {
	out := make([]Term, 0, len(e.terms))
	for v, c := range e.terms {
		out = append(out, Term{Var: v, Coef: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Var.seq < out[j].Var.seq })
	return out
}

// Eval evaluates e at the given values. Missing variables count as zero.
func (e *Expr) Eval(values map[*Variable]float64) float64 {
	total := e.Constant
	for v, c := range e.terms {
		total += c * values[v]
	}
	return total
}

// String renders e as "3*x + 2*y - 1".
func (e *Expr) String() string {
	var b strings.Builder
	for i, t := range e.Terms() {
		coef := t.Coef
		switch {
		case i > 0 && coef < 0:
			b.WriteString(" - ")
			coef = -coef
		case i > 0:
			b.WriteString(" + ")
		case coef < 0:
			b.WriteString("-")
			coef = -coef
		}
		if coef != 1 {
			b.WriteString(formatFloat(coef) + "*")
		}
		b.WriteString(t.Var.Name)
	}
	switch {
	case b.Len() == 0:
		return formatFloat(e.Constant)
	case e.Constant > 0:
		b.WriteString(" + " + formatFloat(e.Constant))
	case e.Constant < 0:
		b.WriteString(" - " + formatFloat(-e.Constant))
	}
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 12, 64)
}
