// Package codegen translates a model AST into an executable Starlark
// program.
//
// The program is written against the "lp" module provided by the sandbox
// and two predeclared values: data, the mapping of bound set and parameter
// values, and tables, the tabular inputs. Generation is a pure function of
// the AST; the same model always yields byte-identical text.
package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/token"
)

// Header is the first line of every generated program.
const Header = "# Code generated by leapopt. DO NOT EDIT."

// ProblemVar is the global holding the problem object.
const ProblemVar = "prob"

// DefaultName is the problem name used when Options.Name is empty.
const DefaultName = "model"

// TranslationError is returned for nodes that have no program equivalent.
type TranslationError struct {
	Pos     token.Position
	Kind    ast.Kind
	Message string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Options configures a Generator.
type Options struct {
	// Name is the problem name passed to lp.problem.
	Name string
}

// Generator generates programs from models.
type Generator struct {
	opts Options
}

// New creates a Generator.
func New(opts Options) *Generator {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	return &Generator{opts: opts}
}

// Generate translates a model with default options.
func Generate(m *ast.Model) (string, error) {
	return New(Options{}).Generate(m)
}

// Generate translates a model into program text.
func (g *Generator) Generate(m *ast.Model) (string, error) {
	gen := &generator{
		p:     newPrinter(),
		usage: ast.Scan(m),
	}
	for _, imp := range m.Imports() {
		gen.tables = append(gen.tables, imp.TableName())
	}
	gen.sets = make(map[string]bool)
	for _, s := range m.Sets() {
		gen.sets[s.Name] = true
	}
	for _, name := range gen.usage.ImplicitSets {
		gen.sets[name] = true
	}

	gen.header(g.opts.Name, m)
	gen.imports(m.Imports())
	if len(m.Sets())+len(gen.usage.ImplicitSets) > 0 {
		gen.section("sets")
		for _, s := range m.Sets() {
			gen.set(s.Name, s.Value)
		}
		for _, name := range gen.usage.ImplicitSets {
			gen.set(name, nil)
		}
	}
	if params := m.Params(); len(params) > 0 {
		gen.section("parameters")
		for _, param := range params {
			gen.param(param)
		}
	}
	if len(m.Vars())+len(gen.usage.Implicit) > 0 {
		gen.section("variables")
		for _, v := range m.Vars() {
			gen.variable(v)
		}
		for _, v := range gen.usage.Implicit {
			gen.implicit(v)
		}
	}
	if objs := m.Objectives(); len(objs) > 0 {
		gen.section("objective")
		for i, obj := range objs {
			gen.objective(obj, i > 0)
		}
	}
	if cons := m.Constraints(); len(cons) > 0 {
		gen.section("constraints")
		for _, c := range cons {
			gen.constraint(c)
		}
	}

	if len(gen.errs) > 0 {
		return "", errors.Join(gen.errs...)
	}
	return gen.p.String(), nil
}

// generator is the state of one Generate call.
type generator struct {
	p       *printer
	usage   *ast.Usage
	tables  []string
	sets    map[string]bool
	pending []string // comments to emit before the current statement
	errs    []error
}

func (g *generator) errorf(n ast.Node, format string, args ...any) {
	g.errs = append(g.errs, &TranslationError{
		Pos:     n.Pos(),
		Kind:    n.Kind(),
		Message: fmt.Sprintf(format, args...),
	})
}

// emit writes a statement line preceded by any pending comments.
func (g *generator) emit(line string) {
	for _, c := range g.pending {
		g.comment(c)
	}
	g.pending = g.pending[:0]
	g.p.line(line)
}

func (g *generator) section(title string) {
	g.p.blank()
	g.comment(title)
}

// commentBreaks keeps comment text on one line.
var commentBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func (g *generator) comment(text string) {
	g.p.line("# " + commentBreaks.Replace(text))
}

func (g *generator) header(name string, m *ast.Model) {
	sense := "lp.MINIMIZE"
	if obj := m.Objective(); obj != nil && obj.Sense == ast.Maximize {
		sense = "lp.MAXIMIZE"
	}
	g.p.line(Header)
	g.p.blank()
	g.p.line(fmt.Sprintf("%s = lp.problem(%s, %s)", ProblemVar, Quote(name), sense))
}

func (g *generator) imports(imps []*ast.Import) {
	if len(imps) == 0 {
		return
	}
	g.section("tables")
	for _, imp := range imps {
		g.comment(fmt.Sprintf("%s: %s", Quote(imp.TableName()), Quote(imp.Path)))
	}
}

// bound writes the data-first resolution chain shared by sets and
// parameters: the bound value, then a same-named column of an imported
// table, then the literal fallback.
func (g *generator) bound(name string, fromTable func(tbl string) string, fallback string) {
	id := Sanitize(name)
	g.p.line(fmt.Sprintf("if %s in data:", Quote(name)))
	g.p.indent()
	g.p.line(fmt.Sprintf("%s = data[%s]", id, Quote(name)))
	g.p.dedent()
	for _, tbl := range g.tables {
		g.p.line(fmt.Sprintf("elif lp.has_column(tables, %s, %s):", Quote(tbl), Quote(name)))
		g.p.indent()
		g.p.line(fmt.Sprintf("%s = %s", id, fromTable(tbl)))
		g.p.dedent()
	}
	g.p.line("else:")
	g.p.indent()
	g.emit(fmt.Sprintf("%s = %s", id, fallback))
	g.p.dedent()
}

func (g *generator) set(name string, value ast.SetExpr) {
	fallback := "[]"
	if value != nil {
		fallback = g.setValue(value)
	}
	g.bound(name, func(tbl string) string {
		return fmt.Sprintf("lp.column_values(tables, %s, %s)", Quote(tbl), Quote(name))
	}, fallback)
}

func (g *generator) param(decl *ast.ParamDecl) {
	def := "0"
	if decl.Default != nil {
		def = g.expr(decl.Default)
	}

	indexSets := "None"
	fallback := def
	if len(decl.Indices) > 0 {
		if g.allSets(decl.Indices) {
			indexSets = g.nameList(decl.Indices)
			fallback = fmt.Sprintf("lp.fill(%s, %s)", indexSets, def)
		} else {
			fallback = fmt.Sprintf("lp.constant(%s, %d)", def, len(decl.Indices))
		}
	}

	quoted := make([]string, len(decl.Indices))
	for i, idx := range decl.Indices {
		quoted[i] = Quote(idx)
	}
	g.bound(decl.Name, func(tbl string) string {
		return fmt.Sprintf("lp.param_table(tables, %s, %s, [%s], %s, %s)",
			Quote(tbl), Quote(decl.Name), strings.Join(quoted, ", "), indexSets, def)
	}, fallback)
}

func (g *generator) allSets(names []string) bool {
	for _, n := range names {
		if !g.sets[n] {
			return false
		}
	}
	return true
}

func (g *generator) nameList(names []string) string {
	ids := make([]string, len(names))
	for i, n := range names {
		ids[i] = Sanitize(n)
	}
	return "[" + strings.Join(ids, ", ") + "]"
}

func (g *generator) variable(decl *ast.VarDecl) {
	cat := "lp.CONTINUOUS"
	low, up := "0", "None"
	switch decl.Domain {
	case ast.Integer:
		cat = "lp.INTEGER"
	case ast.Binary:
		cat = "lp.BINARY"
		up = "1"
	}
	if decl.Free {
		low, up = "None", "None"
	}
	if decl.Lower != nil {
		low = g.expr(decl.Lower)
	}
	if decl.Upper != nil {
		up = g.expr(decl.Upper)
	}

	kwargs := fmt.Sprintf("cat=%s, low=%s, up=%s", cat, low, up)
	if len(decl.Indices) == 0 {
		g.emit(fmt.Sprintf("%s = lp.var(%s, %s)", Sanitize(decl.Name), Quote(decl.Name), kwargs))
		return
	}
	g.emit(fmt.Sprintf("%s = lp.var_dict(%s, %s, %s)",
		Sanitize(decl.Name), Quote(decl.Name), g.nameList(decl.Indices), kwargs))
}

// implicit declares a variable used without a declaration. Indexed ones are
// created on first access.
func (g *generator) implicit(v ast.Variable) {
	id := Sanitize(v.Name)
	if v.IsIndexed() {
		g.p.line(fmt.Sprintf("%s = lp.lazy_vars(%s, %d)", id, Quote(v.Name), len(v.Indices)))
		return
	}
	g.p.line(fmt.Sprintf("%s = lp.var(%s, cat=lp.CONTINUOUS, low=0, up=None)", id, Quote(v.Name)))
}

func (g *generator) objective(obj *ast.Objective, ignored bool) {
	if ignored {
		g.comment(fmt.Sprintf("ignored objective: %s %s", obj.Sense, ast.Format(obj.Expr)))
		return
	}
	g.emit(fmt.Sprintf("%s.objective(%s)", ProblemVar, g.expr(obj.Expr)))
}

func (g *generator) constraint(c *ast.Constraint) {
	rel, ok := g.relation(c.Expr)
	if !ok {
		return
	}

	depth := 0
	for _, l := range c.Loops {
		g.p.line(fmt.Sprintf("for %s in %s:", Sanitize(l.Var), g.setValue(l.Source)))
		g.p.indent()
		depth++
		if l.Cond != nil {
			g.p.line(fmt.Sprintf("if %s:", g.expr(l.Cond)))
			g.p.indent()
			depth++
		}
	}

	name := g.constraintName(c)
	if name == "" {
		g.emit(fmt.Sprintf("%s.add(%s)", ProblemVar, rel))
	} else {
		g.emit(fmt.Sprintf("%s.add(%s, %s)", ProblemVar, rel, name))
	}
	for ; depth > 0; depth-- {
		g.p.dedent()
	}
}

// relation renders a constraint body as an lp.le, lp.ge or lp.eq call.
func (g *generator) relation(e ast.Expr) (string, bool) {
	cmp, ok := e.(*ast.Comparison)
	if !ok {
		g.errorf(e, "constraint must be a comparison, got %s", e.Kind())
		return "", false
	}
	var fn string
	switch cmp.Op {
	case "<=":
		fn = "lp.le"
	case ">=":
		fn = "lp.ge"
	case "==":
		fn = "lp.eq"
	default:
		g.errorf(e, "operator %s cannot be used in a constraint", cmp.Op)
		return "", false
	}
	return fmt.Sprintf("%s(%s, %s)", fn, g.expr(cmp.Left), g.expr(cmp.Right)), true
}

// constraintName renders the name argument of prob.add. Under loops,
// unindexed names are made unique with the loop variables.
func (g *generator) constraintName(c *ast.Constraint) string {
	if c.Name == "" {
		return ""
	}
	var keys []string
	switch {
	case len(c.NameIndices) > 0:
		for _, idx := range c.NameIndices {
			keys = append(keys, g.expr(idx))
		}
	case len(c.Loops) > 0:
		for _, l := range c.Loops {
			keys = append(keys, Sanitize(l.Var))
		}
	default:
		return Quote(c.Name)
	}
	return fmt.Sprintf("lp.name(%s, %s)", Quote(c.Name), strings.Join(keys, ", "))
}
