package compiler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/leapstack-labs/leapopt/internal/testutil"
	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/binding"
	"github.com/leapstack-labs/leapopt/pkg/codegen"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/parser"
	"github.com/leapstack-labs/leapopt/pkg/solver"
	"github.com/leapstack-labs/leapopt/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const production = `set P
param lucro[P]
param horas[P]
param capacidade = 40
var x[P]: int >= 0
maximize: sum(lucro[p] * x[p] for p in P)
subject to:
  horas_total: sum(horas[p] * x[p] for p in P) <= capacidade
`

func compile(t *testing.T, src string, opts compiler.Options) *compiler.CompiledModel {
	t.Helper()
	opts.Logger = testutil.NewTestLogger(t)
	m, err := compiler.Compile(context.Background(), src, opts)
	require.NoError(t, err)
	return m
}

func productionTables(t *testing.T) map[string]any {
	t.Helper()
	tbl, err := table.New("produtos", []string{"P", "lucro", "horas"}, [][]any{
		{"cadeira", 30, 4},
		{"mesa", 50, 10},
	})
	require.NoError(t, err)
	return map[string]any{"produtos": tbl}
}

func TestCompile_Solve(t *testing.T) {
	m := compile(t, production, compiler.Options{Tables: productionTables(t)})

	assert.Equal(t, ast.ClassMILP, m.Class())
	assert.Equal(t, []any{"cadeira", "mesa"}, m.Bound()["P"])
	assert.Contains(t, m.Program(), codegen.Header)

	res := m.Solve(context.Background(), compiler.SolveOptions{})
	require.Equal(t, solver.StatusOptimal, res.Status, res.Message)
	// 10 chairs use all 40 hours for 300.
	assert.InDelta(t, 300, *res.Objective, 1e-6)
	assert.InDelta(t, 10, res.Variables["x_cadeira"], 1e-6)
	assert.InDelta(t, 0, res.Variables["x_mesa"], 1e-6)
}

func TestCompile_Accessors(t *testing.T) {
	src := "set P = {A, B}\nvar x[P]\nminimize: sum(x[p] for p in P) + custos.valor\nst:\n x[A] + y >= 2"
	m := compile(t, src, compiler.Options{})

	assert.Equal(t, src, m.Source())
	require.NotNil(t, m.AST())

	vars := m.Variables()
	require.Len(t, vars, 2)
	assert.Equal(t, "x", vars[0].Name)
	assert.True(t, vars[0].Declared)
	assert.Equal(t, "y", vars[1].Name)
	assert.False(t, vars[1].Declared)

	assert.Equal(t, []ast.DatasetRef{{Table: "custos", Column: "valor"}}, m.Datasets())
	assert.Positive(t, m.Complexity().Total())

	// accessors return copies
	vars[0].Name = "changed"
	m.Bound()["P"] = nil
	assert.Equal(t, "x", m.Variables()[0].Name)
	assert.NotNil(t, m.Bound()["P"])
}

func TestCompiledModel_Summary(t *testing.T) {
	src := "set P = {A, B}\nvar x[P]: int\nminimize: sum(x[p] for p in P) + custos.valor\nst:\n x[A] + y >= 2"
	s := compile(t, src, compiler.Options{}).Summary()

	assert.Equal(t, "MILP", s.Class)
	require.Len(t, s.Variables, 2)
	assert.Equal(t, compiler.VariableInfo{Name: "x", Indices: []string{"P"}, Domain: "integer", Declared: true}, s.Variables[0])
	assert.False(t, s.Variables[1].Declared)
	assert.Equal(t, []string{"custos.valor"}, s.Datasets)
	assert.Equal(t, s.Complexity.Total(), s.Score)
	assert.NotEmpty(t, s.Level)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "syntax",
			source: "set P = {A, B",
			check: func(t *testing.T, err error) {
				var syn *parser.SyntaxError
				assert.True(t, errors.As(err, &syn))
			},
		},
		{
			name:   "validation",
			source: "minimize: 3 + 4",
			check: func(t *testing.T, err error) {
				var verr *ast.ValidationError
				assert.True(t, errors.As(err, &verr))
			},
		},
		{
			name:   "translation",
			source: "min: frobnicate(x)",
			check: func(t *testing.T, err error) {
				var terr *codegen.TranslationError
				assert.True(t, errors.As(err, &terr))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Compile(context.Background(), tt.source, compiler.Options{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCompile_Strict(t *testing.T) {
	src := "set P\nparam c[P]\nvar x[P]\nmin: sum(c[p] * x[p] for p in P)"

	m := compile(t, src, compiler.Options{})
	assert.NotEmpty(t, m.Warnings())

	_, err := compiler.Compile(context.Background(), src, compiler.Options{Strict: true})
	var berr *binding.Error
	assert.True(t, errors.As(err, &berr), "got %v", err)
}

func TestCompiledModel_ConcurrentSolve(t *testing.T) {
	m := compile(t, production, compiler.Options{Tables: productionTables(t)})

	var wg sync.WaitGroup
	results := make([]*solver.Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Solve(context.Background(), compiler.SolveOptions{})
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.Equal(t, solver.StatusOptimal, res.Status)
		assert.InDelta(t, 300, *res.Objective, 1e-6)
	}
}

func TestCompiledModel_Problem(t *testing.T) {
	m := compile(t, production, compiler.Options{Tables: productionTables(t), Name: "fabrica"})

	p, err := m.Problem(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fabrica", p.Name)
	assert.Equal(t, solver.Maximize, p.Sense)
	require.Len(t, p.Constraints, 1)
	assert.Equal(t, "horas_total", p.Constraints[0].Name)
	assert.True(t, p.IsMIP())
}

func TestCompiledModel_SolveExecutionError(t *testing.T) {
	m := compile(t, "var x\nminimize: x\nst:\n x >= 1 / 0", compiler.Options{})

	res := m.Solve(context.Background(), compiler.SolveOptions{})
	assert.Equal(t, solver.StatusExecutionError, res.Status)
	assert.Contains(t, res.Message, "division by zero")
}

func TestCompile_RoundTrip(t *testing.T) {
	m := compile(t, "var x>=0\nvar y>=0\nmin: x+y\nsubject to:\n c1: x+y>=10", compiler.Options{})

	res := m.Solve(context.Background(), compiler.SolveOptions{})
	require.Equal(t, solver.StatusOptimal, res.Status, res.Message)
	assert.InDelta(t, 10, *res.Objective, 1e-6)
	assert.InDelta(t, 10, res.Variables["x"]+res.Variables["y"], 1e-6)
}

func TestCompile_QuotedSetElements(t *testing.T) {
	hostile := "'); DROP TABLE x; --"
	src := `set S = {"'); DROP TABLE x; --", "b"}
var x[S] >= 0
minimize: sum(x[s] for s in S)
subject to:
  demand: sum(x[s] for s in S) >= 3
`
	m := compile(t, src, compiler.Options{})
	assert.Equal(t, []any{hostile, "b"}, m.Bound()["S"])
	assert.Contains(t, m.Program(), codegen.Quote(hostile))

	res := m.Solve(context.Background(), compiler.SolveOptions{})
	require.Equal(t, solver.StatusOptimal, res.Status, res.Message)
	assert.InDelta(t, 3, *res.Objective, 1e-6)
	assert.Len(t, res.Variables, 2)
}

func TestCompile_ImportPathStaysInComment(t *testing.T) {
	src := `import "data/x\nprob = lp.problem('pwned', lp.MAXIMIZE)\n#.csv"
var x <= 5
min: x
st:
  c: x >= 1
`
	m := compile(t, src, compiler.Options{})
	require.Len(t, m.Warnings(), 1)
	assert.Contains(t, m.Warnings()[0].Message, "cannot import")
	assert.NotContains(t, m.Program(), "\nprob = lp.problem('pwned'")

	res := m.Solve(context.Background(), compiler.SolveOptions{})
	require.Equal(t, solver.StatusOptimal, res.Status, res.Message)
	assert.InDelta(t, 1, *res.Objective, 1e-6)
}

func TestCompile_ParameterTableChoice(t *testing.T) {
	wrong, err := table.New("a_wrong", []string{"K", "Cost"}, [][]any{{"Z", 3}, {"Y", 5}})
	require.NoError(t, err)
	right, err := table.New("b_right", []string{"Products", "Cost"}, [][]any{{"A", 3}, {"B", 5}})
	require.NoError(t, err)
	src := `set P = {A, B}
param Cost[P]
var x[P] <= 1
maximize: sum(Cost[p] * x[p] for p in P)
subject to:
  cap: sum(x[p] for p in P) <= 2
`

	t.Run("skips the table that does not fit", func(t *testing.T) {
		m := compile(t, src, compiler.Options{Tables: map[string]any{"a_wrong": wrong, "b_right": right}})
		assert.Empty(t, m.Warnings())

		res := m.Solve(context.Background(), compiler.SolveOptions{})
		require.Equal(t, solver.StatusOptimal, res.Status, res.Message)
		assert.InDelta(t, 8, *res.Objective, 1e-6)
	})

	t.Run("own data that matches nothing is an error", func(t *testing.T) {
		_, err := compiler.Compile(context.Background(), src, compiler.Options{
			Tables: map[string]any{"Cost": map[int]float64{7: 10, 8: 30}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, binding.ErrNoOverlap)
	})
}

func TestCompiledModel_BoundIsACopy(t *testing.T) {
	m := compile(t, production, compiler.Options{Tables: productionTables(t)})
	before := m.Bound()

	got := m.Bound()
	got["P"].([]any)[0] = "banco"
	got["lucro"].(map[any]any)["cadeira"] = 0.0
	delete(got, "horas")

	assert.Equal(t, before, m.Bound())
}

func TestResolveSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "modelo.oml")
	require.NoError(t, os.WriteFile(file, []byte("var x\nmin: x"), 0o600))
	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("var y\nmin: y"), 0o600))

	tests := []struct {
		name     string
		arg      string
		source   string
		path     string
		errorMsg string
	}{
		{"model file", file, "var x\nmin: x", file, ""},
		{"existing file without extension", plain, "var y\nmin: y", plain, ""},
		{"inline single line", "var x min: x", "var x min: x", "", ""},
		{"multi-line is inline", file + "\nmin: x", file + "\nmin: x", "", ""},
		{"missing model file", filepath.Join(dir, "missing.mod"), "", "", "does not exist"},
		{"directory with extension", mkdir(t, filepath.Join(dir, "dir.oml")), "", "", "is a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, path, err := compiler.ResolveSource(tt.arg)
			if tt.errorMsg != "" {
				assert.ErrorContains(t, err, tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, source)
			assert.Equal(t, tt.path, path)
		})
	}
}

func mkdir(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.Mkdir(path, 0o750))
	return path
}

func TestIsModelFile(t *testing.T) {
	assert.True(t, compiler.IsModelFile("a/b.OML"))
	assert.True(t, compiler.IsModelFile("x.los"))
	assert.False(t, compiler.IsModelFile("x.csv"))
}

func TestAnalyze(t *testing.T) {
	t.Run("model", func(t *testing.T) {
		s, err := compiler.Analyze("var x >= 0\nmaximize: 3*x + custos.valor")
		require.NoError(t, err)
		require.Len(t, s.Variables, 1)
		assert.True(t, s.Variables[0].Declared)
		assert.Equal(t, []string{"custos.valor"}, s.Datasets)
		assert.Empty(t, s.Warnings)
	})

	t.Run("expression", func(t *testing.T) {
		s, err := compiler.Analyze("3*x + 2*y")
		require.NoError(t, err)
		require.Len(t, s.Variables, 2)
		assert.Equal(t, "x", s.Variables[0].Name)
		assert.False(t, s.Variables[0].Declared)
	})

	t.Run("multi-line errors are not retried", func(t *testing.T) {
		_, err := compiler.Analyze("maximize: (\nst:")
		var list parser.ErrorList
		require.ErrorAs(t, err, &list)
	})

	t.Run("bad expression", func(t *testing.T) {
		_, err := compiler.Analyze("3 * * x")
		require.Error(t, err)
	})
}
