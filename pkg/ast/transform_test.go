package ast_test

import (
	"testing"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roundTrip = "var x>=0\nvar y>=0\nmin: x+y\nsubject to:\n c1: x+y>=10"

func mustParse(t *testing.T, src string) *ast.Result {
	t.Helper()
	res, err := ast.Parse(src)
	require.NoError(t, err)
	return res
}

func variableKeys(vars []ast.Variable) []string {
	keys := make([]string, len(vars))
	for i, v := range vars {
		keys[i] = v.Key()
	}
	return keys
}

func TestTransform_RoundTripModel(t *testing.T) {
	res := mustParse(t, roundTrip)

	m := res.Model
	require.Len(t, m.Statements, 4)
	assert.Len(t, m.Vars(), 2)

	obj := m.Objective()
	require.NotNil(t, obj)
	assert.Equal(t, ast.Minimize, obj.Sense)
	assert.Equal(t, "minimize: x + y", ast.Format(obj))

	cons := m.Constraints()
	require.Len(t, cons, 1)
	assert.Equal(t, "c1", cons[0].Name)
	cmp, ok := cons[0].Expr.(*ast.Comparison)
	require.True(t, ok)
	assert.Equal(t, ">=", cmp.Op)

	assert.Equal(t, []string{"x", "y"}, variableKeys(res.Variables))
	assert.Equal(t, ast.Complexity{
		NestingLevel:   1,
		VariableCount:  2,
		OperationCount: 4,
	}, res.Complexity)
	assert.Equal(t, 11, res.Complexity.Total())
	assert.Equal(t, ast.LevelMedium, res.Complexity.Level())
}

func TestTransform_FreshStatePerCall(t *testing.T) {
	first := mustParse(t, "min: a + b")
	second := mustParse(t, "max: c")

	assert.Equal(t, []string{"a", "b"}, variableKeys(first.Variables))
	assert.Equal(t, []string{"c"}, variableKeys(second.Variables))
	assert.Equal(t, 1, second.Complexity.VariableCount)
}

func TestTransform_ImplicitVariables(t *testing.T) {
	res := mustParse(t, "set P\nparam c[P]\nmin: sum(c[p] * x[p] for p in P)")

	require.Len(t, res.Variables, 1)
	v := res.Variables[0]
	assert.Equal(t, "x", v.Name)
	assert.Equal(t, []string{"p"}, v.Indices)
	assert.False(t, v.Declared)
	assert.Equal(t, ast.Continuous, v.Domain)

	assert.Equal(t, ast.Complexity{
		NestingLevel:   2,
		VariableCount:  1,
		OperationCount: 5,
		FunctionCount:  1,
	}, res.Complexity)
	assert.Equal(t, ast.LevelHigh, res.Complexity.Level())
}

func TestTransform_VariableIdentityIgnoresOrder(t *testing.T) {
	a := mustParse(t, "min: y[i] + x\nc: x[j] >= 1")
	b := mustParse(t, "c: x[j] >= 1\nmin: x + y[i]")

	assert.Equal(t, variableKeys(a.Variables), variableKeys(b.Variables))
	assert.Equal(t, []string{"x", "x[j]", "y[i]"}, variableKeys(a.Variables))
}

func TestTransform_IndexLabels(t *testing.T) {
	res := mustParse(t, "var x[P]\nset P\nc: x[A] >= 1")

	assert.Equal(t, []string{"x[P]"}, variableKeys(res.Variables))
	cmp := res.Model.Constraints()[0].Expr.(*ast.Comparison)
	ref, ok := cmp.Left.(*ast.IndexedVar)
	require.True(t, ok)
	label, ok := ref.Indices[0].(*ast.String)
	require.True(t, ok)
	assert.Equal(t, "A", label.Value)
}

func TestTransform_Literals(t *testing.T) {
	res := mustParse(t, "param a = 5\nparam b = -2.5\nparam c = 1e3\nparam d = \"txt\"")
	params := res.Model.Params()
	require.Len(t, params, 4)

	a := params[0].Default.(*ast.Number)
	assert.True(t, a.Integral)
	assert.Equal(t, int64(5), a.Int)

	b := params[1].Default.(*ast.Number)
	assert.False(t, b.Integral)
	assert.InDelta(t, -2.5, b.Value, 1e-12)
	assert.Equal(t, "-2.5", b.Raw)

	c := params[2].Default.(*ast.Number)
	assert.False(t, c.Integral)
	assert.InDelta(t, 1000.0, c.Value, 1e-12)

	d := params[3].Default.(*ast.String)
	assert.Equal(t, "txt", d.Value)
}

func TestTransform_VarDeclarations(t *testing.T) {
	res := mustParse(t, "var x: bin\nvar y: inteiro >= -5 <= 5\nvar z livre\nvar w = 3")
	vars := res.Model.Vars()
	require.Len(t, vars, 4)

	assert.Equal(t, ast.Binary, vars[0].Domain)

	assert.Equal(t, ast.Integer, vars[1].Domain)
	lower := vars[1].Lower.(*ast.Number)
	assert.Equal(t, int64(-5), lower.Int)
	assert.Equal(t, "5", vars[1].Upper.(*ast.Number).Raw)

	assert.True(t, vars[2].Free)

	assert.NotNil(t, vars[3].Lower)
	assert.Same(t, vars[3].Lower, vars[3].Upper)

	assert.Equal(t, ast.ClassMILP, ast.Classify(res.Model))
}

func TestTransform_SetValues(t *testing.T) {
	res := mustParse(t, `set A = {x, "y z", 3}
set B = 1..9 step 2
set C = A union B
set D = {p in A where p != "x"}
set E = clientes.codigo`)
	sets := res.Model.Sets()
	require.Len(t, sets, 5)

	list := sets[0].Value.(*ast.SetList)
	require.Len(t, list.Items, 3)
	assert.Equal(t, "x", list.Items[0].(*ast.String).Value)
	assert.Equal(t, "y z", list.Items[1].(*ast.String).Value)
	assert.Equal(t, int64(3), list.Items[2].(*ast.Number).Int)

	rng := sets[1].Value.(*ast.SetRange)
	assert.Equal(t, int64(1), rng.Start.Int)
	assert.Equal(t, int64(9), rng.End.Int)
	assert.Equal(t, int64(2), rng.Step.Int)

	op := sets[2].Value.(*ast.SetOp)
	assert.Equal(t, "union", op.Op)

	filter := sets[3].Value.(*ast.SetFilter)
	assert.Equal(t, "p", filter.Var)
	assert.Equal(t, `{p in A where p != "x"}`, ast.Format(filter))

	assert.Equal(t, ast.KindDatasetCol, sets[4].Value.Kind())
	assert.Equal(t, []ast.DatasetRef{{Table: "clientes", Column: "codigo"}}, res.Datasets)
	assert.Empty(t, res.Variables, "loop and set names are not variables")
}

func TestTransform_RangeErrors(t *testing.T) {
	_, err := ast.Parse("set T = 1..5 step 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range step must not be zero")

	_, err = ast.Parse("set T = 1.5..3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range bounds must be integers")
}

func TestTransform_NumberRange(t *testing.T) {
	for _, src := range []string{
		"var x\nmin: x\nst:\n x >= 99999999999999999999",
		"param big = -2e15",
		"param inf = 1e400",
	} {
		_, err := ast.Parse(src)
		var syn *parser.SyntaxError
		require.ErrorAs(t, err, &syn, src)
		assert.Contains(t, err.Error(), "out of range", src)
	}

	res := mustParse(t, "param m = 1e15\nparam n = -1000000000000000")
	params := res.Model.Params()
	assert.InDelta(t, 1e15, params[0].Default.(*ast.Number).Value, 0)
	assert.InDelta(t, -1e15, params[1].Default.(*ast.Number).Value, 0)
}

func TestTransform_Datasets(t *testing.T) {
	res := mustParse(t, "min: sum(demanda.qtd * x[i] for i in I) + custos.fixo")
	assert.Equal(t, []ast.DatasetRef{
		{Table: "custos", Column: "fixo"},
		{Table: "demanda", Column: "qtd"},
	}, res.Datasets)
	assert.Equal(t, "demanda.qtd", res.Datasets[1].String())
}

func TestTransform_Nesting(t *testing.T) {
	res := mustParse(t, "min: abs(sum(x[i] for i in I)) + if(y > 0, y, 0)")
	assert.Equal(t, 3, res.Complexity.NestingLevel)
	assert.Equal(t, 2, res.Complexity.FunctionCount)
	assert.Equal(t, 1, res.Complexity.ConditionalCount)
}

func TestTransform_ConstraintLoops(t *testing.T) {
	res := mustParse(t, "set L\nset P\nvar x[P, L]\nst:\n cap[l]: sum(x[p, l] for p in P) <= 100 for l in L where l != \"Z\"")
	c := res.Model.Constraints()[0]

	assert.Equal(t, "cap", c.Name)
	require.Len(t, c.NameIndices, 1)
	assert.Equal(t, "l", c.NameIndices[0].(*ast.VarRef).Name)
	require.Len(t, c.Loops, 1)
	assert.Equal(t, "l", c.Loops[0].Var)
	assert.Equal(t, "L", c.Loops[0].Source.(*ast.SetRef).Name)
	assert.NotNil(t, c.Loops[0].Cond)
	assert.Equal(t, `cap[l]: sum(x[p, l] for p in P) <= 100 for l in L where l != "Z"`, ast.Format(c))
	assert.Equal(t, []string{"x[P,L]"}, variableKeys(res.Variables))
}

func TestTransform_BareExpression(t *testing.T) {
	tree, err := parser.ParseExpression("x + y >= 1")
	require.NoError(t, err)

	res, err := ast.Transform(tree)
	require.NoError(t, err)
	require.Len(t, res.Model.Constraints(), 1)
	assert.Equal(t, []string{"x", "y"}, variableKeys(res.Variables))
}

func TestParse_SyntaxErrorPropagates(t *testing.T) {
	_, err := ast.Parse("var")
	require.Error(t, err)

	var list parser.ErrorList
	assert.ErrorAs(t, err, &list)
}

func TestImport_TableName(t *testing.T) {
	res := mustParse(t, "import \"data/custos.csv\"\nimport \"x.parquet\" as vendas")
	imports := res.Model.Imports()
	require.Len(t, imports, 2)
	assert.Equal(t, "custos", imports[0].TableName())
	assert.Equal(t, "vendas", imports[1].TableName())
}
