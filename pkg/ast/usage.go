package ast

import "sort"

// Usage summarizes how a model uses names.
type Usage struct {
	// Implicit holds decision variables used without a declaration, one per
	// name with the largest index arity seen, sorted by name.
	Implicit []Variable
	// ImplicitSets holds undeclared names used as set values, sorted.
	ImplicitSets []string
	// Refs counts references to declared names, including imported tables.
	Refs map[string]int
	// Declared maps each declared name to its declaration kind.
	Declared map[string]Kind
}

// Scan computes the Usage of a model. Loop variables are resolved
// lexically, so a name bound by an enclosing loop is never implicit.
func Scan(m *Model) *Usage {
	s := &scanner{
		implicit: make(map[string]Variable),
		sets:     make(map[string]bool),
		usage:    &Usage{Refs: make(map[string]int), Declared: make(map[string]Kind)},
	}
	for _, stmt := range m.Statements {
		switch n := stmt.(type) {
		case *SetDecl:
			s.usage.Declared[n.Name] = KindSet
		case *ParamDecl:
			s.usage.Declared[n.Name] = KindParam
		case *VarDecl:
			s.usage.Declared[n.Name] = KindVar
		case *Import:
			s.usage.Declared[n.TableName()] = KindImport
		}
	}

	for _, stmt := range m.Statements {
		s.stmt(stmt)
	}

	for _, v := range s.implicit {
		s.usage.Implicit = append(s.usage.Implicit, v)
	}
	sortVariables(s.usage.Implicit)
	for name := range s.sets {
		s.usage.ImplicitSets = append(s.usage.ImplicitSets, name)
	}
	sort.Strings(s.usage.ImplicitSets)
	return s.usage
}

// IsImplicit reports whether name is an undeclared decision variable.
func (u *Usage) IsImplicit(name string) bool {
	for _, v := range u.Implicit {
		if v.Name == name {
			return true
		}
	}
	return false
}

type scanner struct {
	scope    []string
	implicit map[string]Variable
	sets     map[string]bool
	usage    *Usage
}

func (s *scanner) stmt(stmt Stmt) {
	switch n := stmt.(type) {
	case *SetDecl:
		s.set(n.Value)
	case *ParamDecl:
		s.indexSets(n.Indices)
		s.expr(n.Default)
	case *VarDecl:
		s.indexSets(n.Indices)
		s.expr(n.Lower)
		s.expr(n.Upper)
	case *Objective:
		s.expr(n.Expr)
	case *ConstraintBlock:
		for _, c := range n.Constraints {
			s.stmt(c)
		}
	case *Constraint:
		mark := len(s.scope)
		s.loops(n.Loops)
		for _, idx := range n.NameIndices {
			s.expr(idx)
		}
		s.expr(n.Expr)
		s.scope = s.scope[:mark]
	}
}

// indexSets records the index names of a declaration as set references.
func (s *scanner) indexSets(names []string) {
	for _, name := range names {
		s.set(&SetRef{Name: name})
	}
}

func (s *scanner) loops(loops []*Loop) {
	for _, l := range loops {
		s.set(l.Source)
		s.scope = append(s.scope, l.Var)
		s.expr(l.Cond)
	}
}

func (s *scanner) set(e SetExpr) {
	switch n := e.(type) {
	case *SetRef:
		if s.inScope(n.Name) {
			return
		}
		if _, ok := s.usage.Declared[n.Name]; ok {
			s.usage.Refs[n.Name]++
			return
		}
		s.sets[n.Name] = true
	case *SetOp:
		s.set(n.Left)
		s.set(n.Right)
	case *SetFilter:
		s.set(n.Source)
		s.scope = append(s.scope, n.Var)
		s.expr(n.Cond)
		s.scope = s.scope[:len(s.scope)-1]
	case *DatasetCol:
		s.ref(n.Table)
	case *SetList:
		for _, item := range n.Items {
			s.expr(item)
		}
	}
}

func (s *scanner) expr(e Expr) {
	switch n := e.(type) {
	case nil:
	case *VarRef:
		s.name(n.Name, nil)
	case *IndexedVar:
		s.name(n.Name, n.Indices)
		for _, idx := range n.Indices {
			s.expr(idx)
		}
	case *DatasetCol:
		s.ref(n.Table)
	case *BinaryOp:
		s.expr(n.Left)
		s.expr(n.Right)
	case *UnaryOp:
		s.expr(n.Operand)
	case *Comparison:
		s.expr(n.Left)
		s.expr(n.Right)
	case *LogicOp:
		for _, op := range n.Operands {
			s.expr(op)
		}
	case *Sum:
		s.aggregate(n.Loops, n.Body)
	case *Prod:
		s.aggregate(n.Loops, n.Body)
	case *Function:
		for _, arg := range n.Args {
			s.expr(arg)
		}
	case *If:
		s.expr(n.Cond)
		s.expr(n.Then)
		s.expr(n.Else)
	}
}

func (s *scanner) aggregate(loops []*Loop, body Expr) {
	mark := len(s.scope)
	s.loops(loops)
	s.expr(body)
	s.scope = s.scope[:mark]
}

func (s *scanner) name(name string, indices []Expr) {
	if s.inScope(name) {
		return
	}
	if _, ok := s.usage.Declared[name]; ok {
		s.usage.Refs[name]++
		return
	}
	if prev, ok := s.implicit[name]; ok && len(prev.Indices) >= len(indices) {
		return
	}
	v := Variable{Name: name, Domain: Continuous}
	for _, idx := range indices {
		v.Indices = append(v.Indices, placeholder(idx))
	}
	s.implicit[name] = v
}

func (s *scanner) ref(name string) {
	if _, ok := s.usage.Declared[name]; ok && !s.inScope(name) {
		s.usage.Refs[name]++
	}
}

func (s *scanner) inScope(name string) bool {
	for i := len(s.scope) - 1; i >= 0; i-- {
		if s.scope[i] == name {
			return true
		}
	}
	return false
}
