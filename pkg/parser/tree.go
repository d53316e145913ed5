package parser

import (
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/token"
)

// Rule names the grammar production that produced a Tree node.
type Rule string

// Grammar productions. The shape of each node is documented next to its rule:
// Token is the significant token, Tokens holds extra names, Children holds
// sub-trees.
const (
	RuleModel          Rule = "model"            // Children: statements
	RuleImport         Rule = "import"           // Tokens: path [, alias]
	RuleSet            Rule = "set"              // Token: name; Children: [set expression]
	RuleSetList        Rule = "set_list"         // Children: items
	RuleSetRange       Rule = "set_range"        // Children: start, end [, step]
	RuleSetRef         Rule = "set_ref"          // Token: name
	RuleSetOp          Rule = "set_op"           // Token: operator word; Children: left, right
	RuleSetFilter      Rule = "set_filter"       // Token: loop variable; Children: source, condition
	RuleParam          Rule = "param"            // Token: name; Tokens: indices; Children: [default]
	RuleVar            Rule = "var"              // Token: name; Tokens: indices; Children: domain?, bounds
	RuleDomain         Rule = "domain"           // Token: domain word
	RuleBound          Rule = "bound"            // Token: operator or "free"; Children: [value]
	RuleObjective      Rule = "objective"        // Token: MINIMIZE/MAXIMIZE; Children: expression
	RuleBlock          Rule = "constraint_block" // Children: constraints
	RuleConstraint     Rule = "constraint"       // Children: [constraint_name], expression, loops
	RuleConstraintName Rule = "constraint_name"  // Token: name; Children: index expressions
	RuleLoop           Rule = "loop"             // Token: variable; Children: source [, condition]
	RuleBinary         Rule = "binary"           // Token: operator; Children: left, right
	RuleUnary          Rule = "unary"            // Token: operator; Children: operand
	RuleCompare        Rule = "compare"          // Token: operator; Children: left, right
	RuleLogic          Rule = "logic"            // Token: AND/OR; Children: left, right
	RuleNot            Rule = "not"              // Children: operand
	RuleName           Rule = "name"             // Token: identifier
	RuleIndexed        Rule = "indexed"          // Token: identifier; Children: index expressions
	RuleDataset        Rule = "dataset"          // Token: table; Tokens: column
	RuleSum            Rule = "sum"              // Children: body, loops
	RuleProd           Rule = "prod"             // Children: body, loops
	RuleCall           Rule = "call"             // Token: function name; Children: arguments
	RuleIf             Rule = "if"               // Children: condition, then, else
	RuleParen          Rule = "paren"            // Children: inner expression
	RuleNumber         Rule = "number"           // Token: literal
	RuleString         Rule = "string"           // Token: literal
)

// Tree is a concrete syntax tree node.
type Tree struct {
	Rule     Rule
	Token    token.Token
	Tokens   []token.Token
	Children []*Tree
	Pos      token.Position
}

// Child returns the i-th child or nil.
func (t *Tree) Child(i int) *Tree {
	if t == nil || i < 0 || i >= len(t.Children) {
		return nil
	}
	return t.Children[i]
}

// Find returns the first direct child produced by rule r.
func (t *Tree) Find(r Rule) *Tree {
	for _, c := range t.Children {
		if c.Rule == r {
			return c
		}
	}
	return nil
}

// All returns every direct child produced by rule r.
func (t *Tree) All(r Rule) []*Tree {
	var out []*Tree
	for _, c := range t.Children {
		if c.Rule == r {
			out = append(out, c)
		}
	}
	return out
}

// String renders the tree as an s-expression, mainly for tests and debugging.
func (t *Tree) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Tree) write(b *strings.Builder) {
	if t == nil {
		b.WriteString("nil")
		return
	}
	b.WriteByte('(')
	b.WriteString(string(t.Rule))
	if t.Token.Literal != "" {
		b.WriteByte(' ')
		b.WriteString(t.Token.Literal)
	}
	for _, tok := range t.Tokens {
		b.WriteByte(' ')
		b.WriteString(tok.Literal)
	}
	for _, c := range t.Children {
		b.WriteByte(' ')
		c.write(b)
	}
	b.WriteByte(')')
}
