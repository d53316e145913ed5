package ast_test

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "round trip model is valid",
			src:  roundTrip,
		},
		{
			name: "conditions may compare",
			src:  "set I\nmin: x\nc: if(x > 1 and y < 2, 1, 0) <= x\nd[i]: x >= 1 for i in I where i != \"a\"",
		},
		{
			name:    "objective without variables",
			src:     "min: 5",
			wantErr: "objective does not reference any decision variable",
		},
		{
			name:    "objective over parameters only",
			src:     "set P\nparam c[P]\nmax: sum(c[p] for p in P)",
			wantErr: "objective does not reference any decision variable",
		},
		{
			name:    "constraint without relation",
			src:     "min: x\nc1: x + 1",
			wantErr: "constraint must be a relation",
		},
		{
			name:    "comparison in value context",
			src:     "min: x + (y >= 2)",
			wantErr: "comparison >= outside a constraint or condition",
		},
		{
			name:    "logic in value context",
			src:     "min: x\nc: x + (y and z) >= 1",
			wantErr: "logical operator and outside a condition",
		},
		{
			name:    "duplicate declaration",
			src:     "set P\nparam P\nmin: x",
			wantErr: `"P" is already declared as a set`,
		},
		{
			name:    "strict inequality in constraint",
			src:     "min: x\nc: x != 3",
			wantErr: "operator != is not supported in constraints",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustParse(t, tt.src)
			err := ast.Validate(res.Model)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var ve *ast.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.True(t, ve.Pos.IsValid())
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	res := mustParse(t, "min: 5\nc1: x + 1\nc2: y != 2")
	err := ast.Validate(res.Model)
	require.Error(t, err)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 3)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Class
	}{
		{src: "", want: ast.ClassEmpty},
		{src: roundTrip, want: ast.ClassLP},
		{src: "var x: int\nmax: x\nc: x <= 3", want: ast.ClassMILP},
		{src: "var b: binary\nmin: b", want: ast.ClassMILP},
	}
	for _, tt := range tests {
		res := mustParse(t, tt.src)
		assert.Equal(t, tt.want, ast.Classify(res.Model), tt.src)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{src: "min: (a + b) * c", want: "minimize: (a + b) * c"},
		{src: "min: a - (b - c)", want: "minimize: a - (b - c)"},
		{src: "min: (a - b) - c", want: "minimize: a - b - c"},
		{src: "min: 2 ^ 3 ^ x", want: "minimize: 2 ^ 3 ^ x"},
		{src: "min: (2 ^ 3) ^ x", want: "minimize: (2 ^ 3) ^ x"},
		{src: "min: -x ^ 2", want: "minimize: -x ^ 2"},
		{src: "maximizar: soma(x[i] para i em I onde c[i] > 0)", want: "maximize: sum(x[i] for i in I where c[i] > 0)"},
		{src: "min: max(x, 0) + if(a > 1 or not b < 2, 1, 0)", want: "minimize: max(x, 0) + if(a > 1 or not b < 2, 1, 0)"},
	}
	for _, tt := range tests {
		res := mustParse(t, tt.src)
		assert.Equal(t, tt.want, ast.Format(res.Model.Objective()), tt.src)
	}
}

func TestWalk(t *testing.T) {
	res := mustParse(t, "set P\nvar x[P]\nmin: sum(x[p] for p in P)\nst:\n c[p]: x[p] <= 3 for p in P")

	kinds := make(map[ast.Kind]int)
	ast.Walk(res.Model, func(n ast.Node) bool {
		kinds[n.Kind()]++
		return true
	})
	assert.Equal(t, 1, kinds[ast.KindModel])
	assert.Equal(t, 2, kinds[ast.KindIndexedVar])
	assert.Equal(t, 2, kinds[ast.KindSetRef])
	assert.Equal(t, 1, kinds[ast.KindSum])
	assert.Equal(t, 1, kinds[ast.KindConstraint])

	var visited int
	ast.Walk(res.Model, func(n ast.Node) bool {
		visited++
		return n.Kind() == ast.KindModel
	})
	assert.Equal(t, 5, visited, "children of statements are skipped")
}
