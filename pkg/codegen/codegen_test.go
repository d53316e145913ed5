package codegen_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/codegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/syntax"
)

var fileOptions = &syntax.FileOptions{TopLevelControl: true, GlobalReassign: true, Set: true}

func generate(t *testing.T, src string) string {
	t.Helper()
	res, err := ast.Parse(src)
	require.NoError(t, err)
	out, err := codegen.Generate(res.Model)
	require.NoError(t, err)
	_, err = fileOptions.Parse("model.star", out, 0)
	require.NoError(t, err, "generated program must parse:\n%s", out)
	return out
}

func TestGenerate_Program(t *testing.T) {
	src := `set P = {A, B}
param c[P] = 2
var x[P] >= 0
minimize: sum(c[p] * x[p] for p in P)
subject to:
  cap[p]: x[p] <= 10 for p in P
`
	want := `# Code generated by leapopt. DO NOT EDIT.

prob = lp.problem("model", lp.MINIMIZE)

# sets
if "P" in data:
    P = data["P"]
else:
    P = ["A", "B"]

# parameters
if "c" in data:
    c = data["c"]
else:
    c = lp.fill([P], 2)

# variables
x = lp.var_dict("x", [P], cat=lp.CONTINUOUS, low=0, up=None)

# objective
prob.objective(lp.sum([c[p] * x[p] for p in P]))

# constraints
for p in P:
    prob.add(lp.le(x[p], 10), lp.name("cap", p))
`
	assert.Equal(t, want, generate(t, src))
}

func TestGenerate_Deterministic(t *testing.T) {
	src := "set P = {A, B}\nmin: sum(x[p] + y[p] for p in P) + z\nst:\n x[A] >= 1"
	assert.Equal(t, generate(t, src), generate(t, src))
}

func TestGenerate_Sense(t *testing.T) {
	out := generate(t, "var x <= 4\nmaximize: 3*x\nminimize: x")
	assert.Contains(t, out, `prob = lp.problem("model", lp.MAXIMIZE)`)
	assert.Contains(t, out, "prob.objective(3 * x)")
	assert.Contains(t, out, "# ignored objective: minimize x")

	out = generate(t, "var x\nc1: x >= 1")
	assert.Contains(t, out, "lp.MINIMIZE")
	assert.NotContains(t, out, "prob.objective")
}

func TestGenerate_ProblemName(t *testing.T) {
	res, err := ast.Parse("min: x")
	require.NoError(t, err)
	out, err := codegen.New(codegen.Options{Name: "diet"}).Generate(res.Model)
	require.NoError(t, err)
	assert.Contains(t, out, `lp.problem("diet", lp.MINIMIZE)`)
}

func TestGenerate_Variables(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"default bounds", "var x", `x = lp.var("x", cat=lp.CONTINUOUS, low=0, up=None)`},
		{"integer with bounds", "var n: int >= 1 <= 5", `n = lp.var("n", cat=lp.INTEGER, low=1, up=5)`},
		{"binary", "var b: binary", `b = lp.var("b", cat=lp.BINARY, low=0, up=1)`},
		{"free", "var y free", `y = lp.var("y", cat=lp.CONTINUOUS, low=None, up=None)`},
		{"indexed", "set P\nset L\nvar x[P, L]: int", `x = lp.var_dict("x", [P, L], cat=lp.INTEGER, low=0, up=None)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, generate(t, tt.input), tt.want)
		})
	}
}

func TestGenerate_ImplicitNames(t *testing.T) {
	out := generate(t, "min: x + sum(y[i, A] for i in I)")
	assert.Contains(t, out, `x = lp.var("x", cat=lp.CONTINUOUS, low=0, up=None)`)
	assert.Contains(t, out, `y = lp.lazy_vars("y", 2)`)
	assert.Contains(t, out, `lp.sum([y[i]["A"] for i in I])`)
	// I is undeclared, so it is bound like a set without a literal value.
	assert.Contains(t, out, "if \"I\" in data:\n    I = data[\"I\"]\nelse:\n    I = []\n")
	assert.NotContains(t, out, `i = lp.var`)
}

func TestGenerate_ImportedTables(t *testing.T) {
	src := `import "dados/custos.csv"
import "demanda.json" as dem
set P
param custo[P]
param budget = 100
`
	out := generate(t, src)
	assert.Contains(t, out, `# "custos": "dados/custos.csv"`)
	assert.Contains(t, out, `elif lp.has_column(tables, "custos", "P"):
    P = lp.column_values(tables, "custos", "P")
elif lp.has_column(tables, "dem", "P"):
    P = lp.column_values(tables, "dem", "P")
else:
    P = []`)
	assert.Contains(t, out, `custo = lp.param_table(tables, "custos", "custo", ["P"], [P], 0)`)
	assert.Contains(t, out, `budget = lp.param_table(tables, "dem", "budget", [], None, 100)`)
	assert.Contains(t, out, "else:\n    budget = 100\n")
}

func TestGenerate_ImportPathStaysInComment(t *testing.T) {
	src := "import \"data/x\\nprob = lp.problem('pwned', lp.MAXIMIZE)\\n#.csv\"\nvar x <= 5\nmin: x\nst:\n  c: x >= 1\n"
	out := generate(t, src)

	var problems []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "prob = ") {
			problems = append(problems, line)
		}
	}
	assert.Equal(t, []string{`prob = lp.problem("model", lp.MINIMIZE)`}, problems)
	assert.Contains(t, out, `# "x\nprob = lp.problem(`)
}

func TestGenerate_SetValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"range", "set T = 1..10", "T = lp.range_set(1, 10)"},
		{"range with step", "set T = 0..10 step 5", "T = lp.range_set(0, 10, 5)"},
		{"mixed literals", `set S = {1, 2.5, "a b"}`, `S = [1, 2.5, "a b"]`},
		{"algebra", "set A = {1}\nset B = {2}\nset C = A union B", "C = lp.union(A, B)"},
		{"filter", "set P = {1, 2}\nparam c[P]\nset F = {p in P where c[p] > 1}", "F = [p for p in P if c[p] > 1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, generate(t, tt.input), tt.want)
		})
	}
}

func TestGenerate_Constraints(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unnamed", "var x\nvar y\nst:\n x + y >= 10", "prob.add(lp.ge(x + y, 10))\n"},
		{"named", "var x\nc1: x == 2", `prob.add(lp.eq(x, 2), "c1")`},
		{
			"loop variables name the constraint",
			"set P = {A}\nvar x[P]\nst:\n lim: x[p] <= 1 for p in P",
			"for p in P:\n    prob.add(lp.le(x[p], 1), lp.name(\"lim\", p))\n",
		},
		{
			"where clause",
			"set L = {1, 2}\nparam d[L]\nvar x[L]\nst:\n dem[l]: x[l] >= d[l] for l in L where d[l] > 0",
			"for l in L:\n    if d[l] > 0:\n        prob.add(lp.ge(x[l], d[l]), lp.name(\"dem\", l))\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, generate(t, tt.input), tt.want)
		})
	}
}

func TestGenerate_Expressions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"parentheses kept where needed", "min: (a + b) * c", "prob.objective((a + b) * c)"},
		{"left associative subtraction", "min: a - (b - c)", "prob.objective(a - (b - c))"},
		{"power", "min: 2 ^ 3 * x", "prob.objective(lp.pow(2, 3) * x)"},
		{"functions", "min: abs(x) + max(1, 2)", "prob.objective(lp.abs(x) + lp.max(1, 2))"},
		{"conditional", "param k = 1\nmin: if(k > 0, x, 0)", "prob.objective((x if k > 0 else 0))"},
		{"negative literal", "min: x - -2", "prob.objective(x - -2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, generate(t, tt.input), tt.want)
		})
	}
}

func TestGenerate_ProdWarning(t *testing.T) {
	out := generate(t, "set P = {1, 2}\nparam c[P]\nmin: prod(c[p] for p in P) * x")
	assert.Contains(t, out, "# WARNING: prod(c[p] for p in P) is nonlinear unless every factor is a constant\nprob.objective(lp.prod([c[p] for p in P]) * x)")
}

func TestGenerate_TranslationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unknown function", "min: frobnicate(x)", `unknown function "frobnicate"`},
		{"strict inequality", "c1: x < 3", "operator < cannot be used in a constraint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ast.Parse(tt.input)
			require.NoError(t, err)
			_, err = codegen.Generate(res.Model)
			require.Error(t, err)
			var terr *codegen.TranslationError
			require.True(t, errors.As(err, &terr))
			assert.Contains(t, terr.Message, tt.want)
			assert.Equal(t, 1, terr.Pos.Line)
		})
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		n    *ast.Number
		want string
	}{
		{&ast.Number{Value: 3, Int: 3, Integral: true}, "3"},
		{&ast.Number{Value: -7, Int: -7, Integral: true}, "-7"},
		{&ast.Number{Value: 2.5}, "2.5"},
		{&ast.Number{Value: 1e-7}, "1e-07"},
		{&ast.Number{Value: 1e21}, "1e+21"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, codegen.Number(tt.n))
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"x", "x"},
		{"custo_total", "custo_total"},
		{"produção", "produção"},
		{"x-y", "xy"},
		{"1st", "_1st"},
		{"", "_"},
		{"$", "_"},
		{"data", "data_"},
		{"prob", "prob_"},
		{"lambda", "lambda_"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, codegen.Sanitize(tt.in), tt.in)
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"a \"b\""`, codegen.Quote(`a "b"`))
}
