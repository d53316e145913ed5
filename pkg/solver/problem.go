package solver

import (
	"fmt"
	"sort"
)

// Sense is the optimization direction.
type Sense int

// Optimization senses.
const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Relation is the comparison of a constraint.
type Relation int

// Constraint relations.
const (
	LE Relation = iota
	GE
	EQ
)

func (r Relation) String() string {
	switch r {
	case GE:
		return ">="
	case EQ:
		return "=="
	}
	return "<="
}

// Constraint is the relation Expr <rel> 0.
type Constraint struct {
	Name     string
	Expr     *Expr
	Relation Relation
}

// NewConstraint builds the constraint lhs <rel> rhs.
func NewConstraint(lhs *Expr, rel Relation, rhs *Expr) *Constraint {
	return &Constraint{Expr: lhs.Sub(rhs), Relation: rel}
}

// Holds reports whether the constraint is satisfied at values within tol.
func (c *Constraint) Holds(values map[*Variable]float64, tol float64) bool {
	v := c.Expr.Eval(values)
	switch c.Relation {
	case LE:
		return v <= tol
	case GE:
		return v >= -tol
	}
	return v <= tol && v >= -tol
}

func (c *Constraint) String() string {
	lhs := &Expr{terms: c.Expr.terms}
	return fmt.Sprintf("%s %s %s", lhs, c.Relation, formatFloat(-c.Expr.Constant))
}

// Problem is an in-memory linear or mixed-integer program.
type Problem struct {
	Name        string
	Sense       Sense
	Objective   *Expr
	Constraints []*Constraint
	names       map[string]bool
}

// NewProblem creates an empty problem.
func NewProblem(name string, sense Sense) *Problem {
	return &Problem{
		Name:      name,
		Sense:     sense,
		Objective: Const(0),
		names:     make(map[string]bool),
	}
}

// SetObjective replaces the objective expression.
func (p *Problem) SetObjective(e *Expr) {
	p.Objective = e
}

// AddConstraint appends c under name. An empty name is replaced by
// "_C<n>"; a name already in use is an error.
func (p *Problem) AddConstraint(c *Constraint, name string) error {
	if name == "" {
		for n := len(p.Constraints) + 1; ; n++ {
			name = fmt.Sprintf("_C%d", n)
			if !p.names[name] {
				break
			}
		}
	}
	if p.names[name] {
		return fmt.Errorf("duplicate constraint name %q", name)
	}
	p.names[name] = true
	c.Name = name
	p.Constraints = append(p.Constraints, c)
	return nil
}

// Variables returns every variable referenced by the objective or a
// constraint, in creation order.
func (p *Problem) Variables() []*Variable {
	seen := make(map[*Variable]bool)
	var out []*Variable
	collect := func(e *Expr) {
		for v := range e.terms {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	collect(p.Objective)
	for _, c := range p.Constraints {
		collect(c.Expr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// IsMIP reports whether any referenced variable is integral.
func (p *Problem) IsMIP() bool {
	for _, v := range p.Variables() {
		if v.Category.IsIntegral() {
			return true
		}
	}
	return false
}

// Check reports two distinct variables sharing a name, which no solution
// could tell apart.
func (p *Problem) Check() error {
	names := make(map[string]bool)
	for _, v := range p.Variables() {
		if names[v.Name] {
			return fmt.Errorf("duplicate variable name %q", v.Name)
		}
		names[v.Name] = true
	}
	return nil
}
