// Package ast defines the abstract syntax tree of an optimization model and
// the transformation from the parser's concrete tree into it.
//
// The tree is a closed set of node types. Statements implement Stmt,
// expressions implement Expr and set values implement SetExpr; the marker
// methods are unexported so no other package can add node kinds. Nodes are
// never modified after Transform returns them.
package ast

import "github.com/leapstack-labs/leapopt/pkg/token"

// Kind discriminates AST node types.
type Kind string

// Node kinds.
const (
	KindModel           Kind = "model"
	KindImport          Kind = "import"
	KindSet             Kind = "set"
	KindSetList         Kind = "set_list"
	KindSetRange        Kind = "set_range"
	KindSetRef          Kind = "set_ref"
	KindSetOp           Kind = "set_op"
	KindSetFilter       Kind = "set_filter"
	KindParam           Kind = "param"
	KindVar             Kind = "var"
	KindObjective       Kind = "objective"
	KindConstraintBlock Kind = "constraint_block"
	KindConstraint      Kind = "constraint"
	KindBinaryOp        Kind = "binary_op"
	KindUnaryOp         Kind = "unary_op"
	KindComparison      Kind = "comparison"
	KindLogicOp         Kind = "logic_op"
	KindVarRef          Kind = "var_ref"
	KindIndexedVar      Kind = "indexed_var"
	KindDatasetCol      Kind = "dataset_col"
	KindSum             Kind = "sum"
	KindProd            Kind = "prod"
	KindFunction        Kind = "function"
	KindIf              Kind = "if"
	KindNumber          Kind = "number"
	KindString          Kind = "string"
)

// Node is implemented by every AST node.
type Node interface {
	Kind() Kind
	Pos() token.Position
}

// Stmt is a top-level model statement.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is a scalar or linear expression.
type Expr interface {
	Node
	exprNode()
}

// SetExpr is a value that denotes an ordered set.
type SetExpr interface {
	Node
	setNode()
}

// NodeInfo carries the source position shared by all nodes.
type NodeInfo struct {
	Position token.Position
}

// Pos returns where the node starts in the source.
func (n NodeInfo) Pos() token.Position { return n.Position }

// Sense is the optimization direction of an objective.
type Sense string

// Optimization senses.
const (
	Minimize Sense = "minimize"
	Maximize Sense = "maximize"
)

// Domain is the value domain of a decision variable.
type Domain string

// Variable domains.
const (
	Continuous Domain = "continuous"
	Integer    Domain = "integer"
	Binary     Domain = "binary"
)

// ---------- Statements ----------

// Model is the root of a transformed program.
type Model struct {
	NodeInfo
	Statements []Stmt
}

// Kind implements Node.
func (*Model) Kind() Kind { return KindModel }

// Import makes an external table available under a name.
type Import struct {
	NodeInfo
	Path  string
	Alias string // empty when no "as" clause was given
}

// Kind implements Node.
func (*Import) Kind() Kind { return KindImport }
func (*Import) stmtNode()  {}

// SetDecl declares a named set with an optional default value.
type SetDecl struct {
	NodeInfo
	Name  string
	Value SetExpr // nil when the set is only bound from data
}

// Kind implements Node.
func (*SetDecl) Kind() Kind { return KindSet }
func (*SetDecl) stmtNode()  {}

// ParamDecl declares a possibly indexed parameter.
type ParamDecl struct {
	NodeInfo
	Name    string
	Indices []string
	Default Expr // *Number or *String, nil when absent
}

// Kind implements Node.
func (*ParamDecl) Kind() Kind { return KindParam }
func (*ParamDecl) stmtNode()  {}

// VarDecl declares a decision variable.
type VarDecl struct {
	NodeInfo
	Name    string
	Indices []string
	Domain  Domain
	Lower   Expr // nil means the domain default
	Upper   Expr // nil means the domain default
	Free    bool // both bounds open, overrides the domain default
}

// Kind implements Node.
func (*VarDecl) Kind() Kind { return KindVar }
func (*VarDecl) stmtNode()  {}

// Objective is a minimize or maximize statement.
type Objective struct {
	NodeInfo
	Sense Sense
	Expr  Expr
}

// Kind implements Node.
func (*Objective) Kind() Kind { return KindObjective }
func (*Objective) stmtNode()  {}

// ConstraintBlock groups the constraints of a "subject to" section.
type ConstraintBlock struct {
	NodeInfo
	Constraints []*Constraint
}

// Kind implements Node.
func (*ConstraintBlock) Kind() Kind { return KindConstraintBlock }
func (*ConstraintBlock) stmtNode()  {}

// Constraint is a relation that must hold for every combination of its
// loop clauses.
type Constraint struct {
	NodeInfo
	Name        string // empty for unnamed constraints
	NameIndices []Expr
	Expr        Expr
	Loops       []*Loop
}

// Kind implements Node.
func (*Constraint) Kind() Kind { return KindConstraint }
func (*Constraint) stmtNode()  {}

// Loop is one "for v in source [where cond]" clause.
type Loop struct {
	NodeInfo
	Var    string
	Source SetExpr
	Cond   Expr // nil when there is no where clause
}

// ---------- Set values ----------

// SetList is an explicit list of elements.
type SetList struct {
	NodeInfo
	Items []Expr // *Number or *String
}

// Kind implements Node.
func (*SetList) Kind() Kind { return KindSetList }
func (*SetList) setNode()   {}

// SetRange is an inclusive integer range.
type SetRange struct {
	NodeInfo
	Start *Number
	End   *Number
	Step  *Number // nil means 1
}

// Kind implements Node.
func (*SetRange) Kind() Kind { return KindSetRange }
func (*SetRange) setNode()   {}

// SetRef refers to another set by name.
type SetRef struct {
	NodeInfo
	Name string
}

// Kind implements Node.
func (*SetRef) Kind() Kind { return KindSetRef }
func (*SetRef) setNode()   {}

// SetOp combines two sets.
type SetOp struct {
	NodeInfo
	Op    string // token.WordUnion, token.WordInter or token.WordDiff
	Left  SetExpr
	Right SetExpr
}

// Kind implements Node.
func (*SetOp) Kind() Kind { return KindSetOp }
func (*SetOp) setNode()   {}

// SetFilter is a comprehension {v in source where cond}.
type SetFilter struct {
	NodeInfo
	Var    string
	Source SetExpr
	Cond   Expr
}

// Kind implements Node.
func (*SetFilter) Kind() Kind { return KindSetFilter }
func (*SetFilter) setNode()   {}

// ---------- Expressions ----------

// BinaryOp is an arithmetic operation.
type BinaryOp struct {
	NodeInfo
	Op    string // + - * / % ^
	Left  Expr
	Right Expr
}

// Kind implements Node.
func (*BinaryOp) Kind() Kind { return KindBinaryOp }
func (*BinaryOp) exprNode()  {}

// UnaryOp is a sign applied to an expression.
type UnaryOp struct {
	NodeInfo
	Op      string // + or -
	Operand Expr
}

// Kind implements Node.
func (*UnaryOp) Kind() Kind { return KindUnaryOp }
func (*UnaryOp) exprNode()  {}

// Comparison is a relation between two expressions.
type Comparison struct {
	NodeInfo
	Op    string // <= >= == != < >
	Left  Expr
	Right Expr
}

// Kind implements Node.
func (*Comparison) Kind() Kind { return KindComparison }
func (*Comparison) exprNode()  {}

// LogicOp is "and", "or" (two operands) or "not" (one operand).
type LogicOp struct {
	NodeInfo
	Op       string
	Operands []Expr
}

// Kind implements Node.
func (*LogicOp) Kind() Kind { return KindLogicOp }
func (*LogicOp) exprNode()  {}

// VarRef is a bare name: a variable, parameter, set or loop variable.
type VarRef struct {
	NodeInfo
	Name string
}

// Kind implements Node.
func (*VarRef) Kind() Kind { return KindVarRef }
func (*VarRef) exprNode()  {}

// IndexedVar is a subscripted name such as x[p, l].
type IndexedVar struct {
	NodeInfo
	Name    string
	Indices []Expr
}

// Kind implements Node.
func (*IndexedVar) Kind() Kind { return KindIndexedVar }
func (*IndexedVar) exprNode()  {}

// DatasetCol references a column of an imported table. It is usable both
// as an expression and as a loop source.
type DatasetCol struct {
	NodeInfo
	Table  string
	Column string
}

// Kind implements Node.
func (*DatasetCol) Kind() Kind { return KindDatasetCol }
func (*DatasetCol) exprNode()  {}
func (*DatasetCol) setNode()   {}

// Ref returns the dataset reference this node denotes.
func (d *DatasetCol) Ref() DatasetRef {
	return DatasetRef{Table: d.Table, Column: d.Column}
}

// Sum is a summation over loop clauses.
type Sum struct {
	NodeInfo
	Body  Expr
	Loops []*Loop
}

// Kind implements Node.
func (*Sum) Kind() Kind { return KindSum }
func (*Sum) exprNode()  {}

// Prod is a product over loop clauses.
type Prod struct {
	NodeInfo
	Body  Expr
	Loops []*Loop
}

// Kind implements Node.
func (*Prod) Kind() Kind { return KindProd }
func (*Prod) exprNode()  {}

// Function is a call to a built-in numeric function.
type Function struct {
	NodeInfo
	Name string // lower-cased
	Args []Expr
}

// Kind implements Node.
func (*Function) Kind() Kind { return KindFunction }
func (*Function) exprNode()  {}

// If is a conditional expression.
type If struct {
	NodeInfo
	Cond Expr
	Then Expr
	Else Expr
}

// Kind implements Node.
func (*If) Kind() Kind { return KindIf }
func (*If) exprNode()  {}

// Number is a numeric literal. Integral literals keep their integer value
// so they can be rendered without a fractional part.
type Number struct {
	NodeInfo
	Raw      string
	Value    float64
	Int      int64
	Integral bool
}

// Kind implements Node.
func (*Number) Kind() Kind { return KindNumber }
func (*Number) exprNode()  {}

// String is a string literal, or a bare label used as a set element or index.
type String struct {
	NodeInfo
	Value string
}

// Kind implements Node.
func (*String) Kind() Kind { return KindString }
func (*String) exprNode()  {}
