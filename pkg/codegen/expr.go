package codegen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/ast"
)

// functions maps model function names to their lp module equivalents.
var functions = map[string]string{
	"abs":   "lp.abs",
	"min":   "lp.min",
	"max":   "lp.max",
	"sqrt":  "lp.sqrt",
	"exp":   "lp.exp",
	"log":   "lp.log",
	"floor": "lp.floor",
	"ceil":  "lp.ceil",
	"round": "lp.round",
	"pow":   "lp.pow",
}

// IsFunction reports whether name is a function models may call.
func IsFunction(name string) bool {
	_, ok := functions[strings.ToLower(name)]
	return ok
}

// Functions returns the names of the functions models may call, sorted.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operator precedence in the generated program. Conditional expressions
// and calls are always self-delimiting.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precUnary
	precAtom
)

func exprPrec(e ast.Expr) int {
	switch n := e.(type) {
	case *ast.LogicOp:
		switch n.Op {
		case "or":
			return precOr
		case "and":
			return precAnd
		}
		return precNot
	case *ast.Comparison:
		return precCompare
	case *ast.BinaryOp:
		switch n.Op {
		case "+", "-":
			return precAdd
		case "^":
			return precAtom
		}
		return precMul
	case *ast.UnaryOp:
		return precUnary
	case *ast.Number:
		if n.Value < 0 {
			return precUnary
		}
	}
	return precAtom
}

// operand renders e, parenthesized when it binds looser than min.
func (g *generator) operand(e ast.Expr, min int) string {
	s := g.expr(e)
	if exprPrec(e) < min {
		return "(" + s + ")"
	}
	return s
}

func (g *generator) expr(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Number:
		return Number(n)
	case *ast.String:
		return Quote(n.Value)
	case *ast.VarRef:
		return Sanitize(n.Name)
	case *ast.IndexedVar:
		var b strings.Builder
		b.WriteString(Sanitize(n.Name))
		for _, idx := range n.Indices {
			b.WriteString("[" + g.expr(idx) + "]")
		}
		return b.String()
	case *ast.DatasetCol:
		return fmt.Sprintf("lp.column_values(tables, %s, %s)", Quote(n.Table), Quote(n.Column))
	case *ast.BinaryOp:
		if n.Op == "^" {
			return fmt.Sprintf("lp.pow(%s, %s)", g.expr(n.Left), g.expr(n.Right))
		}
		prec := exprPrec(n)
		return g.operand(n.Left, prec) + " " + n.Op + " " + g.operand(n.Right, prec+1)
	case *ast.UnaryOp:
		return n.Op + g.operand(n.Operand, precUnary)
	case *ast.Comparison:
		return g.operand(n.Left, precCompare+1) + " " + n.Op + " " + g.operand(n.Right, precCompare+1)
	case *ast.LogicOp:
		if n.Op == "not" && len(n.Operands) == 1 {
			return "not " + g.operand(n.Operands[0], precNot)
		}
		prec := exprPrec(n)
		parts := make([]string, len(n.Operands))
		for i, op := range n.Operands {
			parts[i] = g.operand(op, prec+1)
		}
		return strings.Join(parts, " "+n.Op+" ")
	case *ast.Sum:
		return fmt.Sprintf("lp.sum(%s)", g.comprehension(n.Body, n.Loops))
	case *ast.Prod:
		g.pending = append(g.pending, fmt.Sprintf("WARNING: %s is nonlinear unless every factor is a constant", ast.Format(n)))
		return fmt.Sprintf("lp.prod(%s)", g.comprehension(n.Body, n.Loops))
	case *ast.Function:
		fn, ok := functions[n.Name]
		if !ok {
			g.errorf(n, "unknown function %q", n.Name)
			return "None"
		}
		args := make([]string, len(n.Args))
		for i, arg := range n.Args {
			args[i] = g.expr(arg)
		}
		return fn + "(" + strings.Join(args, ", ") + ")"
	case *ast.If:
		return fmt.Sprintf("(%s if %s else %s)", g.expr(n.Then), g.expr(n.Cond), g.expr(n.Else))
	case nil:
		return "None"
	}
	g.errorf(e, "unsupported expression %s", e.Kind())
	return "None"
}

// comprehension renders a list comprehension over loop clauses.
func (g *generator) comprehension(body ast.Expr, loops []*ast.Loop) string {
	var b strings.Builder
	b.WriteString("[" + g.expr(body))
	for _, l := range loops {
		fmt.Fprintf(&b, " for %s in %s", Sanitize(l.Var), g.setValue(l.Source))
		if l.Cond != nil {
			b.WriteString(" if " + g.operand(l.Cond, precOr))
		}
	}
	b.WriteString("]")
	return b.String()
}

func (g *generator) setValue(s ast.SetExpr) string {
	switch n := s.(type) {
	case *ast.SetRef:
		return Sanitize(n.Name)
	case *ast.SetList:
		items := make([]string, len(n.Items))
		for i, item := range n.Items {
			items[i] = g.expr(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case *ast.SetRange:
		if n.Step != nil {
			return fmt.Sprintf("lp.range_set(%s, %s, %s)", Number(n.Start), Number(n.End), Number(n.Step))
		}
		return fmt.Sprintf("lp.range_set(%s, %s)", Number(n.Start), Number(n.End))
	case *ast.DatasetCol:
		return g.expr(n)
	case *ast.SetOp:
		return fmt.Sprintf("lp.%s(%s, %s)", n.Op, g.setValue(n.Left), g.setValue(n.Right))
	case *ast.SetFilter:
		v := Sanitize(n.Var)
		return fmt.Sprintf("[%s for %s in %s if %s]", v, v, g.setValue(n.Source), g.operand(n.Cond, precOr))
	case nil:
		return "[]"
	}
	g.errorf(s, "unsupported set value %s", s.Kind())
	return "[]"
}

// Number renders a numeric literal. Integral values have no fractional
// part; other values always carry a decimal point or exponent.
func Number(n *ast.Number) string {
	if n.Integral {
		return strconv.FormatInt(n.Int, 10)
	}
	s := strconv.FormatFloat(n.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
