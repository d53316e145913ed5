package ast

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapopt/pkg/token"
)

// ValidationError reports a model that parses but violates a structural
// rule.
type ValidationError struct {
	Pos     token.Position
	Message string
}

func (e *ValidationError) Error() string {
	if !e.Pos.IsValid() {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Validate checks a model for structural errors. All problems are
// reported, joined with errors.Join; the result is nil for a valid model.
func Validate(m *Model) error {
	v := &validator{decls: make(map[string]Kind)}
	v.declarations(m)
	for _, s := range m.Statements {
		switch n := s.(type) {
		case *VarDecl:
			v.value(n.Lower)
			v.value(n.Upper)
		case *SetDecl:
			v.set(n.Value)
		case *Objective:
			v.value(n.Expr)
			if !v.refsVariable(n.Expr) {
				v.errorf(n.Pos(), "objective does not reference any decision variable")
			}
		case *ConstraintBlock:
			for _, c := range n.Constraints {
				v.constraint(c)
			}
		case *Constraint:
			v.constraint(n)
		}
	}
	return errors.Join(v.errs...)
}

type validator struct {
	decls map[string]Kind
	errs  []error
}

func (v *validator) errorf(pos token.Position, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) declarations(m *Model) {
	declare := func(name string, kind Kind, pos token.Position) {
		if prev, ok := v.decls[name]; ok {
			v.errorf(pos, "%q is already declared as a %s", name, prev)
			return
		}
		v.decls[name] = kind
	}
	for _, s := range m.Statements {
		switch n := s.(type) {
		case *Import:
			declare(n.TableName(), KindImport, n.Pos())
		case *SetDecl:
			declare(n.Name, KindSet, n.Pos())
		case *ParamDecl:
			declare(n.Name, KindParam, n.Pos())
		case *VarDecl:
			declare(n.Name, KindVar, n.Pos())
		}
	}
}

func (v *validator) constraint(c *Constraint) {
	v.loops(c.Loops)
	for _, idx := range c.NameIndices {
		v.value(idx)
	}
	cmp, ok := c.Expr.(*Comparison)
	if !ok {
		pos := c.Pos()
		if c.Expr != nil {
			pos = c.Expr.Pos()
		}
		v.errorf(pos, "constraint must be a relation using <=, >= or ==")
		if c.Expr != nil {
			v.condition(c.Expr)
		}
		return
	}
	switch cmp.Op {
	case "<", ">", "!=":
		v.errorf(cmp.Pos(), "operator %s is not supported in constraints; use <=, >= or ==", cmp.Op)
	}
	v.value(cmp.Left)
	v.value(cmp.Right)
}

func (v *validator) loops(loops []*Loop) {
	for _, l := range loops {
		v.set(l.Source)
		v.condition(l.Cond)
	}
}

func (v *validator) set(s SetExpr) {
	switch n := s.(type) {
	case *SetOp:
		v.set(n.Left)
		v.set(n.Right)
	case *SetFilter:
		v.set(n.Source)
		v.condition(n.Cond)
	}
}

// condition checks an expression where comparisons and logic are allowed.
func (v *validator) condition(e Expr) {
	switch n := e.(type) {
	case *Comparison:
		v.value(n.Left)
		v.value(n.Right)
	case *LogicOp:
		for _, op := range n.Operands {
			v.condition(op)
		}
	default:
		v.value(e)
	}
}

// value checks an expression that must produce a number.
func (v *validator) value(e Expr) {
	switch n := e.(type) {
	case nil:
	case *Comparison:
		v.errorf(n.Pos(), "comparison %s outside a constraint or condition", n.Op)
	case *LogicOp:
		v.errorf(n.Pos(), "logical operator %s outside a condition", n.Op)
	case *BinaryOp:
		v.value(n.Left)
		v.value(n.Right)
	case *UnaryOp:
		v.value(n.Operand)
	case *IndexedVar:
		for _, idx := range n.Indices {
			v.value(idx)
		}
	case *Sum:
		v.loops(n.Loops)
		v.value(n.Body)
	case *Prod:
		v.loops(n.Loops)
		v.value(n.Body)
	case *Function:
		for _, arg := range n.Args {
			v.value(arg)
		}
	case *If:
		v.condition(n.Cond)
		v.value(n.Then)
		v.value(n.Else)
	}
}

// refsVariable reports whether e mentions a decision variable: a declared
// var, or a name that is neither declared otherwise nor bound by a loop.
func (v *validator) refsVariable(e Expr) bool {
	bound := make(map[string]bool)
	Walk(e, func(n Node) bool {
		switch n := n.(type) {
		case *Sum:
			for _, l := range n.Loops {
				bound[l.Var] = true
			}
		case *Prod:
			for _, l := range n.Loops {
				bound[l.Var] = true
			}
		}
		return true
	})

	found := false
	Walk(e, func(n Node) bool {
		var name string
		switch n := n.(type) {
		case *VarRef:
			name = n.Name
		case *IndexedVar:
			name = n.Name
		default:
			return !found
		}
		kind, declared := v.decls[name]
		if (declared && kind == KindVar) || (!declared && !bound[name]) {
			found = true
		}
		return !found
	})
	return found
}

// ReferencesVariable reports whether e, an expression of m, mentions a
// decision variable.
func ReferencesVariable(m *Model, e Expr) bool {
	v := &validator{decls: make(map[string]Kind)}
	v.declarations(m)
	return v.refsVariable(e)
}
