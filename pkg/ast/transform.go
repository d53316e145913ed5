package ast

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/parser"
	"github.com/leapstack-labs/leapopt/pkg/token"
)

// Result is the output of one Transform call.
type Result struct {
	Model      *Model
	Variables  []Variable   // sorted by identity
	Datasets   []DatasetRef // sorted by table, then column
	Complexity Complexity
}

// Parse parses source and transforms the concrete tree in one step.
func Parse(source string) (*Result, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return Transform(tree)
}

// Transform converts a concrete syntax tree into an AST, collecting the
// referenced decision variables, dataset columns and complexity counters.
//
// Each call owns its accumulators, so concurrent or sequential calls never
// share discovered state. Errors are returned as a parser.ErrorList.
func Transform(tree *parser.Tree) (*Result, error) {
	if tree == nil {
		return nil, parser.ErrorList{{Message: "empty syntax tree"}}
	}
	t := &transformer{
		decls:     make(map[string]Kind),
		variables: make(map[string]Variable),
		datasets:  make(map[DatasetRef]struct{}),
	}
	model := t.model(tree)
	if len(t.errs) > 0 {
		return nil, t.errs
	}

	res := &Result{
		Model:      model,
		Variables:  make([]Variable, 0, len(t.variables)),
		Datasets:   make([]DatasetRef, 0, len(t.datasets)),
		Complexity: t.complexity,
	}
	for _, v := range t.variables {
		res.Variables = append(res.Variables, v)
	}
	for d := range t.datasets {
		res.Datasets = append(res.Datasets, d)
	}
	sortVariables(res.Variables)
	sortDatasets(res.Datasets)
	res.Complexity.VariableCount = len(res.Variables)
	res.Complexity.NestingLevel = 1 + t.maxDepth
	return res, nil
}

// TableName returns the name an import is registered under: the alias when
// present, otherwise the file name without its extension.
func (i *Import) TableName() string {
	if i.Alias != "" {
		return i.Alias
	}
	base := filepath.Base(i.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type transformer struct {
	decls     map[string]Kind // sets, params, vars and import names
	scope     []string        // active loop variables
	variables map[string]Variable
	datasets  map[DatasetRef]struct{}

	complexity Complexity
	depth      int
	maxDepth   int

	errs parser.ErrorList
}

func (t *transformer) errorf(tree *parser.Tree, format string, args ...any) {
	t.errs = append(t.errs, &parser.SyntaxError{
		Pos:     tree.Pos,
		Text:    tree.Token.Literal,
		Message: fmt.Sprintf(format, args...),
	})
}

func info(tree *parser.Tree) NodeInfo {
	return NodeInfo{Position: tree.Pos}
}

// ---------- statements ----------

func (t *transformer) model(tree *parser.Tree) *Model {
	m := &Model{NodeInfo: info(tree)}
	if tree.Rule == parser.RuleModel {
		t.declare(tree)
	} else {
		// A bare expression or constraint, as produced by parser.ParseExpression.
		tree = &parser.Tree{Rule: parser.RuleModel, Children: []*parser.Tree{tree}, Pos: tree.Pos}
	}

	for _, child := range tree.Children {
		if stmt := t.statement(child); stmt != nil {
			m.Statements = append(m.Statements, stmt)
		}
	}
	return m
}

// declare records every declared name up front, so uses may precede
// declarations.
func (t *transformer) declare(tree *parser.Tree) {
	for _, child := range tree.Children {
		switch child.Rule {
		case parser.RuleSet:
			t.decls[child.Token.Literal] = KindSet
		case parser.RuleParam:
			t.decls[child.Token.Literal] = KindParam
		case parser.RuleVar:
			t.decls[child.Token.Literal] = KindVar
		case parser.RuleImport:
			imp := t.importStmt(child)
			t.decls[imp.TableName()] = KindImport
		}
	}
}

func (t *transformer) statement(tree *parser.Tree) Stmt {
	switch tree.Rule {
	case parser.RuleImport:
		return t.importStmt(tree)
	case parser.RuleSet:
		s := &SetDecl{NodeInfo: info(tree), Name: tree.Token.Literal}
		if v := tree.Child(0); v != nil {
			s.Value = t.setExpr(v)
		}
		return s
	case parser.RuleParam:
		return t.param(tree)
	case parser.RuleVar:
		return t.variable(tree)
	case parser.RuleObjective:
		t.complexity.OperationCount++
		o := &Objective{NodeInfo: info(tree), Sense: Minimize}
		if tree.Token.Type == token.MAXIMIZE {
			o.Sense = Maximize
		}
		o.Expr = t.expr(tree.Child(0))
		return o
	case parser.RuleBlock:
		b := &ConstraintBlock{NodeInfo: info(tree)}
		for _, c := range tree.Children {
			b.Constraints = append(b.Constraints, t.constraint(c))
		}
		return b
	case parser.RuleConstraint:
		return t.constraint(tree)
	default:
		// Anything else is a bare expression; keep it as an unnamed constraint
		// so validation can report it.
		return &Constraint{NodeInfo: info(tree), Expr: t.expr(tree)}
	}
}

func (t *transformer) importStmt(tree *parser.Tree) *Import {
	imp := &Import{NodeInfo: info(tree)}
	if len(tree.Tokens) > 0 {
		imp.Path = tree.Tokens[0].Literal
	}
	if len(tree.Tokens) > 1 {
		imp.Alias = tree.Tokens[1].Literal
	}
	return imp
}

func (t *transformer) param(tree *parser.Tree) *ParamDecl {
	p := &ParamDecl{NodeInfo: info(tree), Name: tree.Token.Literal}
	for _, idx := range tree.Tokens {
		p.Indices = append(p.Indices, idx.Literal)
	}
	if def := tree.Child(0); def != nil {
		p.Default = t.literal(def)
	}
	return p
}

func (t *transformer) variable(tree *parser.Tree) *VarDecl {
	v := &VarDecl{NodeInfo: info(tree), Name: tree.Token.Literal, Domain: Continuous}
	for _, idx := range tree.Tokens {
		v.Indices = append(v.Indices, idx.Literal)
	}

	for _, child := range tree.Children {
		switch child.Rule {
		case parser.RuleDomain:
			switch token.Contextual(child.Token.Literal) {
			case token.WordInteger:
				v.Domain = Integer
			case token.WordBinary:
				v.Domain = Binary
			default:
				v.Domain = Continuous
			}
		case parser.RuleBound:
			switch child.Token.Type {
			case token.GE:
				v.Lower = t.expr(child.Child(0))
			case token.LE:
				v.Upper = t.expr(child.Child(0))
			case token.ASSIGN, token.EQ:
				v.Lower = t.expr(child.Child(0))
				v.Upper = v.Lower
			default:
				v.Free = true
			}
		}
	}

	decl := Variable{Name: v.Name, Indices: v.Indices, Domain: v.Domain, Declared: true}
	t.variables[decl.Key()] = decl
	return v
}

func (t *transformer) constraint(tree *parser.Tree) *Constraint {
	c := &Constraint{NodeInfo: info(tree)}
	var name, body *parser.Tree
	var loops []*parser.Tree
	for _, child := range tree.Children {
		switch child.Rule {
		case parser.RuleConstraintName:
			name = child
		case parser.RuleLoop:
			loops = append(loops, child)
		default:
			body = child
		}
	}

	mark := len(t.scope)
	c.Loops = t.loops(loops)
	if name != nil {
		c.Name = name.Token.Literal
		for _, idx := range name.Children {
			c.NameIndices = append(c.NameIndices, t.index(idx))
		}
	}
	if body == nil {
		t.errorf(tree, "constraint has no expression")
	} else {
		c.Expr = t.expr(body)
	}
	t.scope = t.scope[:mark]
	return c
}

// loops transforms loop clauses, leaving their variables in scope. Callers
// restore the scope when the enclosing construct ends.
func (t *transformer) loops(trees []*parser.Tree) []*Loop {
	out := make([]*Loop, 0, len(trees))
	for _, tree := range trees {
		t.complexity.OperationCount++
		l := &Loop{NodeInfo: info(tree), Var: tree.Token.Literal, Source: t.source(tree.Child(0))}
		t.scope = append(t.scope, l.Var)
		if cond := tree.Child(1); cond != nil {
			t.complexity.ConditionalCount++
			l.Cond = t.expr(cond)
		}
		out = append(out, l)
	}
	return out
}

// ---------- sets ----------

func (t *transformer) source(tree *parser.Tree) SetExpr {
	if tree == nil {
		return nil
	}
	if tree.Rule == parser.RuleName {
		return &SetRef{NodeInfo: info(tree), Name: tree.Token.Literal}
	}
	return t.setExpr(tree)
}

func (t *transformer) setExpr(tree *parser.Tree) SetExpr {
	switch tree.Rule {
	case parser.RuleSetList:
		s := &SetList{NodeInfo: info(tree)}
		for _, item := range tree.Children {
			s.Items = append(s.Items, t.literal(item))
		}
		return s
	case parser.RuleSetRange:
		r := &SetRange{NodeInfo: info(tree)}
		r.Start = t.integer(tree.Child(0))
		r.End = t.integer(tree.Child(1))
		if step := tree.Child(2); step != nil {
			r.Step = t.integer(step)
			if r.Step != nil && r.Step.Int == 0 {
				t.errorf(step, "range step must not be zero")
			}
		}
		return r
	case parser.RuleSetRef:
		return &SetRef{NodeInfo: info(tree), Name: tree.Token.Literal}
	case parser.RuleDataset:
		return t.dataset(tree)
	case parser.RuleSetOp:
		return &SetOp{
			NodeInfo: info(tree),
			Op:       tree.Token.Literal,
			Left:     t.setExpr(tree.Child(0)),
			Right:    t.setExpr(tree.Child(1)),
		}
	case parser.RuleSetFilter:
		f := &SetFilter{NodeInfo: info(tree), Var: tree.Token.Literal, Source: t.source(tree.Child(0))}
		t.scope = append(t.scope, f.Var)
		t.complexity.ConditionalCount++
		f.Cond = t.expr(tree.Child(1))
		t.scope = t.scope[:len(t.scope)-1]
		return f
	}
	t.errorf(tree, "unexpected %s in set value", tree.Rule)
	return &SetList{NodeInfo: info(tree)}
}

// literal transforms a set item or parameter default. Bare names become
// string labels.
func (t *transformer) literal(tree *parser.Tree) Expr {
	switch tree.Rule {
	case parser.RuleName, parser.RuleString:
		return &String{NodeInfo: info(tree), Value: tree.Token.Literal}
	}
	if n := t.number(tree); n != nil {
		return n
	}
	return &Number{NodeInfo: info(tree), Raw: "0"}
}

func (t *transformer) integer(tree *parser.Tree) *Number {
	n := t.number(tree)
	if n != nil && !n.Integral {
		t.errorf(tree, "range bounds must be integers")
	}
	return n
}

// number transforms a numeric literal, folding a leading sign.
func (t *transformer) number(tree *parser.Tree) *Number {
	if tree == nil {
		return nil
	}
	sign := ""
	lit := tree
	if tree.Rule == parser.RuleUnary {
		if tree.Token.Type == token.MINUS {
			sign = "-"
		}
		lit = tree.Child(0)
	}
	if lit == nil || lit.Rule != parser.RuleNumber {
		t.errorf(tree, "expected a number")
		return nil
	}
	n, err := parseNumber(sign + lit.Token.Literal)
	if err != nil {
		t.errorf(lit, "%s", parser.ErrInvalidNumber)
		return nil
	}
	if math.Abs(n.Value) > MaxNumber {
		t.errorf(lit, "number %s is out of range; magnitudes above %g are not supported", n.Raw, MaxNumber)
		return nil
	}
	n.NodeInfo = info(tree)
	return n
}

// MaxNumber is the largest literal magnitude a model may contain.
const MaxNumber = 1e15

func parseNumber(raw string) (*Number, error) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &Number{Raw: raw, Value: float64(i), Int: i, Integral: true}, nil
	}
	// Overflow yields ±Inf, which the magnitude check rejects.
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, err
	}
	return &Number{Raw: raw, Value: f}, nil
}

// ---------- expressions ----------

func (t *transformer) expr(tree *parser.Tree) Expr {
	if tree == nil {
		return nil
	}
	switch tree.Rule {
	case parser.RuleNumber:
		if n := t.number(tree); n != nil {
			return n
		}
		return &Number{NodeInfo: info(tree), Raw: "0"}
	case parser.RuleString:
		return &String{NodeInfo: info(tree), Value: tree.Token.Literal}
	case parser.RuleParen:
		return t.expr(tree.Child(0))
	case parser.RuleUnary:
		if child := tree.Child(0); child != nil && child.Rule == parser.RuleNumber {
			if n := t.number(tree); n != nil {
				return n
			}
			return &Number{NodeInfo: info(tree), Raw: "0"}
		}
		t.complexity.OperationCount++
		return &UnaryOp{NodeInfo: info(tree), Op: tree.Token.Literal, Operand: t.expr(tree.Child(0))}
	case parser.RuleBinary:
		t.complexity.OperationCount++
		op := tree.Token.Literal
		if tree.Token.Type == token.CARET {
			op = "^"
		}
		return &BinaryOp{NodeInfo: info(tree), Op: op, Left: t.expr(tree.Child(0)), Right: t.expr(tree.Child(1))}
	case parser.RuleCompare:
		t.complexity.OperationCount++
		return &Comparison{
			NodeInfo: info(tree),
			Op:       comparisonOp(tree.Token.Type),
			Left:     t.expr(tree.Child(0)),
			Right:    t.expr(tree.Child(1)),
		}
	case parser.RuleLogic:
		t.complexity.OperationCount++
		op := "and"
		if tree.Token.Type == token.OR {
			op = "or"
		}
		return &LogicOp{NodeInfo: info(tree), Op: op, Operands: []Expr{t.expr(tree.Child(0)), t.expr(tree.Child(1))}}
	case parser.RuleNot:
		t.complexity.OperationCount++
		return &LogicOp{NodeInfo: info(tree), Op: "not", Operands: []Expr{t.expr(tree.Child(0))}}
	case parser.RuleName:
		name := tree.Token.Literal
		t.use(name, nil)
		return &VarRef{NodeInfo: info(tree), Name: name}
	case parser.RuleIndexed:
		v := &IndexedVar{NodeInfo: info(tree), Name: tree.Token.Literal}
		for _, idx := range tree.Children {
			v.Indices = append(v.Indices, t.index(idx))
		}
		t.use(v.Name, v.Indices)
		return v
	case parser.RuleDataset:
		return t.dataset(tree)
	case parser.RuleSum, parser.RuleProd:
		return t.aggregate(tree)
	case parser.RuleCall:
		t.complexity.FunctionCount++
		t.enter()
		defer t.leave()
		f := &Function{NodeInfo: info(tree), Name: token.Fold(tree.Token.Literal)}
		for _, arg := range tree.Children {
			f.Args = append(f.Args, t.expr(arg))
		}
		return f
	case parser.RuleIf:
		t.complexity.ConditionalCount++
		t.enter()
		defer t.leave()
		return &If{
			NodeInfo: info(tree),
			Cond:     t.expr(tree.Child(0)),
			Then:     t.expr(tree.Child(1)),
			Else:     t.expr(tree.Child(2)),
		}
	}
	t.errorf(tree, "unexpected %s in expression", tree.Rule)
	return &Number{NodeInfo: info(tree), Raw: "0"}
}

func (t *transformer) aggregate(tree *parser.Tree) Expr {
	t.complexity.OperationCount += 2
	t.complexity.FunctionCount++
	t.enter()
	defer t.leave()

	mark := len(t.scope)
	loops := t.loops(tree.Children[1:])
	body := t.expr(tree.Child(0))
	t.scope = t.scope[:mark]

	if tree.Rule == parser.RuleProd {
		return &Prod{NodeInfo: info(tree), Body: body, Loops: loops}
	}
	return &Sum{NodeInfo: info(tree), Body: body, Loops: loops}
}

// index transforms one subscript. A bare name that is neither a loop
// variable nor a declared name is a label such as x[A].
func (t *transformer) index(tree *parser.Tree) Expr {
	if tree.Rule == parser.RuleName {
		name := tree.Token.Literal
		if _, declared := t.decls[name]; !declared && !t.inScope(name) {
			return &String{NodeInfo: info(tree), Value: name}
		}
	}
	return t.expr(tree)
}

func (t *transformer) dataset(tree *parser.Tree) *DatasetCol {
	d := &DatasetCol{NodeInfo: info(tree), Table: tree.Token.Literal}
	if len(tree.Tokens) > 0 {
		d.Column = tree.Tokens[0].Literal
	}
	t.datasets[d.Ref()] = struct{}{}
	return d
}

// use records name as an implicit decision variable unless it is a loop
// variable or a declared name.
func (t *transformer) use(name string, indices []Expr) {
	if t.inScope(name) {
		return
	}
	if _, ok := t.decls[name]; ok {
		return
	}
	v := Variable{Name: name, Domain: Continuous}
	for _, idx := range indices {
		v.Indices = append(v.Indices, placeholder(idx))
	}
	t.variables[v.Key()] = v
}

func placeholder(e Expr) string {
	if s, ok := e.(*String); ok {
		return s.Value
	}
	return Format(e)
}

func (t *transformer) inScope(name string) bool {
	for i := len(t.scope) - 1; i >= 0; i-- {
		if t.scope[i] == name {
			return true
		}
	}
	return false
}

func (t *transformer) enter() {
	t.depth++
	if t.depth > t.maxDepth {
		t.maxDepth = t.depth
	}
}

func (t *transformer) leave() {
	t.depth--
}

func comparisonOp(tt token.TokenType) string {
	switch tt {
	case token.LE:
		return "<="
	case token.GE:
		return ">="
	case token.LT:
		return "<"
	case token.GT:
		return ">"
	case token.NE:
		return "!="
	}
	return "=="
}
