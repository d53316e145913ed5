package binding

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/table"
)

func (r *binding) bindSet(decl *ast.SetDecl) {
	elems, origin := r.setFromData(decl.Name)
	if elems == nil && decl.Value != nil {
		if v, ok := r.evalSet(decl.Value); ok {
			elems, origin = v, "literal"
		}
	}
	if elems == nil {
		switch decl.Value.(type) {
		case nil:
			r.fail(&Error{Name: decl.Name, Message: "set has no data source and no literal value"})
		case *ast.SetFilter:
			// Comprehensions are evaluated by the generated program.
		default:
			r.fail(&Error{Name: decl.Name, Message: "set is not bound; the literal default is used at run time"})
		}
		return
	}

	r.values[decl.Name] = elems
	r.logger.Debug("binding set",
		slog.String("name", decl.Name),
		slog.String("origin", origin),
		slog.Int("elements", len(elems)))
}

// bindImplicitSet binds a set that is used as an index but never declared.
// Without data it stays unbound silently; the program treats it as empty.
func (r *binding) bindImplicitSet(name string) {
	elems, origin := r.setFromData(name)
	if elems == nil {
		return
	}
	r.values[name] = elems
	r.logger.Debug("binding implicit set",
		slog.String("name", name),
		slog.String("origin", origin),
		slog.Int("elements", len(elems)))
}

// setFromData resolves a set from the input source registered under its own
// name, else from the first other table with a same-named column.
func (r *binding) setFromData(name string) ([]any, string) {
	if src, ok := r.sources[name]; ok {
		switch {
		case src.table != nil:
			if col, ok := setColumn(src.table, name); ok {
				u, _ := src.table.Unique(col)
				return u, "table " + src.name
			}
			r.warn(name, "table %s has no column %s and more than one column", src.name, name)
		case src.seq != nil:
			return table.Dedupe(src.seq), "input"
		case src.mapping != nil:
			return sortedKeys(src.mapping), "input"
		default:
			return []any{src.scalar}, "input"
		}
	}

	if found := r.scan(name); len(found) > 0 {
		u, _ := found[0].table.Unique(found[0].column)
		return u, "table " + found[0].table.Name()
	}
	return nil, ""
}

// setColumn picks the column of a set's own table: one matching the set
// name, an index column, or the sole column.
func setColumn(tbl *table.Table, name string) (string, bool) {
	if col, ok := tbl.Lookup(name); ok {
		return col, true
	}
	if idx := tbl.Index(); len(idx) == 1 {
		return idx[0], true
	}
	if cols := tbl.Columns(); len(cols) == 1 {
		return cols[0], true
	}
	return "", false
}

// evalSet evaluates a set value that does not depend on run-time data.
func (r *binding) evalSet(expr ast.SetExpr) ([]any, bool) {
	switch n := expr.(type) {
	case *ast.SetList:
		out := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			out = append(out, LiteralValue(item))
		}
		return table.Dedupe(out), true
	case *ast.SetRange:
		return RangeValues(n), true
	case *ast.SetRef:
		v, ok := r.values[n.Name].([]any)
		return v, ok
	case *ast.DatasetCol:
		src, ok := r.sources[n.Table]
		if !ok || src.table == nil {
			return nil, false
		}
		col, ok := src.table.Lookup(n.Column)
		if !ok {
			return nil, false
		}
		u, _ := src.table.Unique(col)
		return u, true
	case *ast.SetOp:
		left, ok := r.evalSet(n.Left)
		if !ok {
			return nil, false
		}
		right, ok := r.evalSet(n.Right)
		if !ok {
			return nil, false
		}
		return SetOp(n.Op, left, right), true
	}
	return nil, false
}

// LiteralValue returns the Go value of a number or string literal.
func LiteralValue(e ast.Expr) any {
	switch n := e.(type) {
	case *ast.Number:
		if n.Integral {
			return n.Int
		}
		return n.Value
	case *ast.String:
		return n.Value
	}
	return nil
}

// RangeValues expands an integer range, inclusive of both ends.
func RangeValues(r *ast.SetRange) []any {
	step := int64(1)
	if r.Step != nil && r.Step.Int != 0 {
		step = r.Step.Int
	}
	var out []any
	start, end := r.Start.Int, r.End.Int
	if step > 0 {
		for i := start; i <= end; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i >= end; i += step {
			out = append(out, i)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out
}

// SetOp applies union, inter or diff, keeping the order of the left operand
// followed by new elements of the right.
func SetOp(op string, left, right []any) []any {
	inRight := make(map[any]bool, len(right))
	for _, v := range right {
		inRight[v] = true
	}
	out := make([]any, 0, len(left))
	switch op {
	case "union":
		out = append(out, left...)
		out = append(out, right...)
		return table.Dedupe(out)
	case "inter":
		for _, v := range left {
			if inRight[v] {
				out = append(out, v)
			}
		}
	case "diff":
		for _, v := range left {
			if !inRight[v] {
				out = append(out, v)
			}
		}
	default:
		panic(fmt.Sprintf("binding: unknown set operator %q", op))
	}
	return table.Dedupe(out)
}
