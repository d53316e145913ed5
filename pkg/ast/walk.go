package ast

// Walk traverses an AST depth-first and calls fn for each node.
// If fn returns false, the children of that node are skipped.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	walkNode(node, fn)
}

func walkNode(node Node, fn func(Node) bool) {
	switch n := node.(type) {
	case *Model:
		for _, s := range n.Statements {
			Walk(s, fn)
		}
	case *SetDecl:
		walkSet(n.Value, fn)
	case *ParamDecl:
		walkExpr(n.Default, fn)
	case *VarDecl:
		walkExpr(n.Lower, fn)
		if n.Upper != n.Lower {
			walkExpr(n.Upper, fn)
		}
	case *Objective:
		walkExpr(n.Expr, fn)
	case *ConstraintBlock:
		for _, c := range n.Constraints {
			Walk(c, fn)
		}
	case *Constraint:
		walkLoops(n.Loops, fn)
		for _, idx := range n.NameIndices {
			walkExpr(idx, fn)
		}
		walkExpr(n.Expr, fn)
	case *SetList:
		for _, item := range n.Items {
			walkExpr(item, fn)
		}
	case *SetRange:
		Walk(n.Start, fn)
		Walk(n.End, fn)
		if n.Step != nil {
			Walk(n.Step, fn)
		}
	case *SetOp:
		walkSet(n.Left, fn)
		walkSet(n.Right, fn)
	case *SetFilter:
		walkSet(n.Source, fn)
		walkExpr(n.Cond, fn)
	case *BinaryOp:
		walkExpr(n.Left, fn)
		walkExpr(n.Right, fn)
	case *UnaryOp:
		walkExpr(n.Operand, fn)
	case *Comparison:
		walkExpr(n.Left, fn)
		walkExpr(n.Right, fn)
	case *LogicOp:
		for _, op := range n.Operands {
			walkExpr(op, fn)
		}
	case *IndexedVar:
		for _, idx := range n.Indices {
			walkExpr(idx, fn)
		}
	case *Sum:
		walkLoops(n.Loops, fn)
		walkExpr(n.Body, fn)
	case *Prod:
		walkLoops(n.Loops, fn)
		walkExpr(n.Body, fn)
	case *Function:
		for _, arg := range n.Args {
			walkExpr(arg, fn)
		}
	case *If:
		walkExpr(n.Cond, fn)
		walkExpr(n.Then, fn)
		walkExpr(n.Else, fn)
	}
}

func walkExpr(e Expr, fn func(Node) bool) {
	if e != nil {
		Walk(e, fn)
	}
}

func walkSet(s SetExpr, fn func(Node) bool) {
	if s != nil {
		Walk(s, fn)
	}
}

func walkLoops(loops []*Loop, fn func(Node) bool) {
	for _, l := range loops {
		walkSet(l.Source, fn)
		walkExpr(l.Cond, fn)
	}
}
