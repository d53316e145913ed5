package ast

// Imports returns the import statements in source order.
func (m *Model) Imports() []*Import {
	var out []*Import
	for _, s := range m.Statements {
		if n, ok := s.(*Import); ok {
			out = append(out, n)
		}
	}
	return out
}

// Sets returns the set declarations in source order.
func (m *Model) Sets() []*SetDecl {
	var out []*SetDecl
	for _, s := range m.Statements {
		if n, ok := s.(*SetDecl); ok {
			out = append(out, n)
		}
	}
	return out
}

// Params returns the parameter declarations in source order.
func (m *Model) Params() []*ParamDecl {
	var out []*ParamDecl
	for _, s := range m.Statements {
		if n, ok := s.(*ParamDecl); ok {
			out = append(out, n)
		}
	}
	return out
}

// Vars returns the variable declarations in source order.
func (m *Model) Vars() []*VarDecl {
	var out []*VarDecl
	for _, s := range m.Statements {
		if n, ok := s.(*VarDecl); ok {
			out = append(out, n)
		}
	}
	return out
}

// Objectives returns every objective statement in source order. Only the
// first one is optimized.
func (m *Model) Objectives() []*Objective {
	var out []*Objective
	for _, s := range m.Statements {
		if n, ok := s.(*Objective); ok {
			out = append(out, n)
		}
	}
	return out
}

// Objective returns the first objective, or nil.
func (m *Model) Objective() *Objective {
	if objs := m.Objectives(); len(objs) > 0 {
		return objs[0]
	}
	return nil
}

// Constraints returns all constraints, flattening constraint blocks.
func (m *Model) Constraints() []*Constraint {
	var out []*Constraint
	for _, s := range m.Statements {
		switch n := s.(type) {
		case *Constraint:
			out = append(out, n)
		case *ConstraintBlock:
			out = append(out, n.Constraints...)
		}
	}
	return out
}

// Class is the kind of mathematical program a model describes.
type Class string

// Problem classes.
const (
	ClassEmpty Class = "empty"
	ClassLP    Class = "LP"
	ClassMILP  Class = "MILP"
)

// Classify reports whether a model is a linear program, a mixed-integer
// linear program, or has nothing to optimize.
func Classify(m *Model) Class {
	if m == nil {
		return ClassEmpty
	}
	vars := m.Vars()
	if len(vars) == 0 && m.Objective() == nil && len(m.Constraints()) == 0 {
		return ClassEmpty
	}
	for _, v := range vars {
		if v.Domain != Continuous {
			return ClassMILP
		}
	}
	return ClassLP
}
