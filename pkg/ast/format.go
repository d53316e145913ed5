package ast

import (
	"strconv"
	"strings"
)

// Format renders a node back to surface syntax. Output is canonical rather
// than a copy of the original text: keywords are English, parentheses are
// only emitted where precedence requires them.
func Format(n Node) string {
	var b strings.Builder
	format(&b, n)
	return b.String()
}

func precedence(e Node) int {
	switch n := e.(type) {
	case *LogicOp:
		switch n.Op {
		case "or":
			return 1
		case "and":
			return 2
		}
		return 3
	case *Comparison:
		return 4
	case *BinaryOp:
		switch n.Op {
		case "+", "-":
			return 5
		case "^":
			return 8
		}
		return 6
	case *UnaryOp:
		return 7
	case *Number:
		if n.Value < 0 {
			return 7
		}
	}
	return 9
}

func formatOperand(b *strings.Builder, e Node, min int) {
	if e != nil && precedence(e) < min {
		b.WriteByte('(')
		format(b, e)
		b.WriteByte(')')
		return
	}
	format(b, e)
}

func format(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
	case *Number:
		b.WriteString(n.Raw)
	case *String:
		b.WriteString(strconv.Quote(n.Value))
	case *VarRef:
		b.WriteString(n.Name)
	case *IndexedVar:
		b.WriteString(n.Name)
		b.WriteByte('[')
		formatList(b, n.Indices)
		b.WriteByte(']')
	case *DatasetCol:
		b.WriteString(n.Table)
		b.WriteByte('.')
		b.WriteString(n.Column)
	case *BinaryOp:
		p := precedence(n)
		left, right := p, p+1
		if n.Op == "^" {
			left, right = p+1, p
		}
		formatOperand(b, n.Left, left)
		b.WriteString(" " + n.Op + " ")
		formatOperand(b, n.Right, right)
	case *UnaryOp:
		b.WriteString(n.Op)
		formatOperand(b, n.Operand, precedence(n))
	case *Comparison:
		formatOperand(b, n.Left, 5)
		b.WriteString(" " + n.Op + " ")
		formatOperand(b, n.Right, 5)
	case *LogicOp:
		p := precedence(n)
		if n.Op == "not" {
			b.WriteString("not ")
			formatOperand(b, n.Operands[0], p)
			return
		}
		for i, op := range n.Operands {
			if i > 0 {
				b.WriteString(" " + n.Op + " ")
			}
			formatOperand(b, op, p+i)
		}
	case *Sum:
		formatAggregate(b, "sum", n.Body, n.Loops)
	case *Prod:
		formatAggregate(b, "prod", n.Body, n.Loops)
	case *Function:
		b.WriteString(n.Name)
		b.WriteByte('(')
		formatList(b, n.Args)
		b.WriteByte(')')
	case *If:
		b.WriteString("if(")
		formatList(b, []Expr{n.Cond, n.Then, n.Else})
		b.WriteByte(')')
	case *SetList:
		b.WriteByte('{')
		formatList(b, n.Items)
		b.WriteByte('}')
	case *SetRange:
		format(b, n.Start)
		b.WriteString("..")
		format(b, n.End)
		if n.Step != nil {
			b.WriteString(" step ")
			format(b, n.Step)
		}
	case *SetRef:
		b.WriteString(n.Name)
	case *SetOp:
		format(b, n.Left)
		b.WriteString(" " + n.Op + " ")
		format(b, n.Right)
	case *SetFilter:
		b.WriteString("{" + n.Var + " in ")
		format(b, n.Source)
		b.WriteString(" where ")
		format(b, n.Cond)
		b.WriteByte('}')
	case *Constraint:
		if n.Name != "" {
			b.WriteString(n.Name)
			if len(n.NameIndices) > 0 {
				b.WriteByte('[')
				formatList(b, n.NameIndices)
				b.WriteByte(']')
			}
			b.WriteString(": ")
		}
		format(b, n.Expr)
		formatLoops(b, n.Loops)
	case *Objective:
		b.WriteString(string(n.Sense) + ": ")
		format(b, n.Expr)
	default:
		b.WriteString("<" + string(n.Kind()) + ">")
	}
}

func formatList(b *strings.Builder, list []Expr) {
	for i, e := range list {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, e)
	}
}

func formatAggregate(b *strings.Builder, name string, body Expr, loops []*Loop) {
	b.WriteString(name + "(")
	format(b, body)
	formatLoops(b, loops)
	b.WriteByte(')')
}

func formatLoops(b *strings.Builder, loops []*Loop) {
	for i, l := range loops {
		if i == 0 {
			b.WriteString(" for ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(l.Var + " in ")
		format(b, l.Source)
		if l.Cond != nil {
			b.WriteString(" where ")
			format(b, l.Cond)
		}
	}
}
