package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapopt/internal/engine"
	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/solver"
	"github.com/leapstack-labs/leapopt/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func ptr(f float64) *float64 { return &f }

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeText, false, ModeText},
		{ModeMarkdown, true, ModeMarkdown},
		{ModeJSON, true, ModeJSON},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestOutputMode_Valid(t *testing.T) {
	for _, m := range []OutputMode{"", ModeAuto, ModeText, ModeMarkdown, ModeJSON} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, OutputMode("yaml").Valid())
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		12:       "12",
		0:        "0",
		2.5:      "2.5",
		1.0 / 3:  "0.333333",
		-1e-9:    "0",
		100.0001: "100.0001",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatFloat(in), "%v", in)
	}
}

func TestRenderer_SolveResult(t *testing.T) {
	res := &solver.Result{
		Status:    solver.StatusOptimal,
		Objective: ptr(12),
		Variables: map[string]float64{"x": 4, "y": 0},
		Elapsed:   3 * time.Millisecond,
		Solver:    "simplex",
	}

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		require.NoError(t, r.SolveResult(SolveOutput{Result: res}, false))
		s := out.String()
		assert.Contains(t, s, "# Result")
		assert.Contains(t, s, "- **Status:** Optimal")
		assert.Contains(t, s, "- **Objective:** 12")
		assert.Contains(t, s, "| x ")
		assert.Contains(t, s, "| y ")
		assert.NotContains(t, s, "\x1b[")
	})

	t.Run("nonzero", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		require.NoError(t, r.SolveResult(SolveOutput{Result: res}, true))
		assert.Contains(t, out.String(), "| x ")
		assert.NotContains(t, out.String(), "| y ")
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeJSON, false)
		require.NoError(t, r.SolveResult(SolveOutput{Name: "m", Result: res, RecordID: "abc"}, true))

		var got struct {
			Name     string `json:"name"`
			RecordID string `json:"record_id"`
			Result   struct {
				Status    string             `json:"status"`
				Objective float64            `json:"objective"`
				Variables map[string]float64 `json:"variables"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, "m", got.Name)
		assert.Equal(t, "abc", got.RecordID)
		assert.Equal(t, "Optimal", got.Result.Status)
		assert.Equal(t, 12.0, got.Result.Objective)
		assert.Equal(t, map[string]float64{"x": 4}, got.Result.Variables)
		// the caller's result is untouched
		assert.Len(t, res.Variables, 2)
	})

	t.Run("text without tty has no colour", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeText, false)
		require.NoError(t, r.SolveResult(SolveOutput{Result: res}, false))
		assert.Contains(t, out.String(), "Status: Optimal")
		assert.NotContains(t, out.String(), "\x1b[")
	})
}

func TestRenderer_SolveResult_Failure(t *testing.T) {
	res := solver.Failure(solver.StatusExecutionError, "simplex", time.Millisecond, errors.New("division by zero"))
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	require.NoError(t, r.SolveResult(SolveOutput{Result: res}, false))
	assert.Contains(t, out.String(), "ExecutionError")
	assert.Contains(t, out.String(), "division by zero")
	assert.NotContains(t, out.String(), "Objective")
}

func TestRenderer_ModelSummary(t *testing.T) {
	s := compiler.Summary{
		Class: "MILP",
		Variables: []compiler.VariableInfo{
			{Name: "x", Indices: []string{"p"}, Domain: "int", Declared: true},
			{Name: "y", Declared: false},
		},
		Datasets: []string{},
		Score:    7,
		Level:    "low",
		Warnings: []string{"set P is empty"},
	}

	r, out, errOut := newTestRenderer(ModeMarkdown, false)
	require.NoError(t, r.ModelSummary("plan", s))
	assert.Contains(t, out.String(), "# Model plan")
	assert.Contains(t, out.String(), "- **Class:** MILP")
	assert.Contains(t, out.String(), "x[p], y (undeclared)")
	assert.Contains(t, out.String(), "- **Datasets:** none")
	assert.Contains(t, out.String(), "7 (low)")
	assert.Contains(t, errOut.String(), "set P is empty")

	r, out, _ = newTestRenderer(ModeJSON, false)
	require.NoError(t, r.ModelSummary("plan", s))
	var got compiler.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, s.Class, got.Class)
	assert.Equal(t, 7, got.Score)
}

func TestRenderer_Diagnostics(t *testing.T) {
	results := []LintFileResult{
		ToLintFileResult("a.oml", []lint.Diagnostic{
			{RuleID: "OB01", Severity: lint.SeverityWarning, Message: "model has no objective", Pos: token.Position{Line: 1, Column: 1}},
			{RuleID: "SY01", Severity: lint.SeverityError, Message: "unbalanced parenthesis", Pos: token.Position{Line: 2, Column: 5}},
		}),
		ToLintFileResult("b.oml", nil),
	}

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		found, err := r.Diagnostics(results)
		require.NoError(t, err)
		assert.True(t, found)
		s := out.String()
		assert.Contains(t, s, "a.oml")
		assert.NotContains(t, s, "b.oml")
		assert.Contains(t, s, "OB01")
		assert.Contains(t, s, "2:5")
		assert.Contains(t, s, "Summary: 2 issues, 1 errors, 1 warnings in 2 files")
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeJSON, false)
		_, err := r.Diagnostics(results)
		require.NoError(t, err)
		var got LintOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, 2, got.Summary.FilesAnalyzed)
		assert.Equal(t, 1, got.Summary.Errors)
		assert.Equal(t, 1, got.Summary.Warnings)
		require.Len(t, got.Files, 1)
		assert.Equal(t, "error", got.Files[0].Diagnostics[1].Severity)
	})

	t.Run("clean", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		found, err := r.Diagnostics([]LintFileResult{ToLintFileResult("b.oml", nil)})
		require.NoError(t, err)
		assert.False(t, found)
		assert.Contains(t, out.String(), "No lint issues found")
	})
}

func TestRenderer_Batch(t *testing.T) {
	b := &engine.BatchResult{
		ID: "run-1",
		Files: []*engine.FileResult{
			{Path: "good.oml", Result: &solver.Result{Status: solver.StatusOptimal, Objective: ptr(3)}},
			{Path: "bad.oml", Err: errors.New("syntax error at line 1, column 11")},
		},
		Duration: 20 * time.Millisecond,
	}
	b.Errors = []error{b.Files[1].Err}

	r, out, _ := newTestRenderer(ModeMarkdown, false)
	require.NoError(t, r.Batch(b))
	s := out.String()
	assert.Contains(t, s, "✓ good.oml")
	assert.Contains(t, s, "Optimal 3")
	assert.Contains(t, s, "✗ bad.oml")
	assert.Contains(t, s, "syntax error at line 1")
	assert.Contains(t, s, "Models: 2 total (1 ok, 1 failed)")

	r, out, _ = newTestRenderer(ModeJSON, false)
	require.NoError(t, r.Batch(b))
	var got BatchOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Files, 2)
	assert.True(t, got.Files[0].OK)
	assert.Contains(t, got.Files[1].Error, "syntax error")
}

func TestRenderer_History(t *testing.T) {
	rec := &state.Record{
		ID:        "0123456789abcdef",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Name:      "plan",
		Source:    "var x >= 0",
		Class:     "LP",
		Valid:     true,
		Program:   "x = lp.var(\"x\")",
		Status:    "Optimal",
		Objective: ptr(12),
	}

	t.Run("list", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		require.NoError(t, r.History([]*state.Record{rec}))
		assert.Contains(t, out.String(), "01234567")
		assert.NotContains(t, out.String(), "0123456789abcdef")
		assert.Contains(t, out.String(), "plan")
	})

	t.Run("empty", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		require.NoError(t, r.History(nil))
		assert.Contains(t, out.String(), "No history recorded")

		r, out, _ = newTestRenderer(ModeJSON, false)
		require.NoError(t, r.History(nil))
		assert.Equal(t, "[]", strings.TrimSpace(out.String()))
	})

	t.Run("record", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		require.NoError(t, r.Record(rec))
		s := out.String()
		assert.Contains(t, s, "# Record 0123456789abcdef")
		assert.Contains(t, s, "## Program")
		assert.Equal(t, 0, strings.Count(s, "```")%2)
	})

	t.Run("stats", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		require.NoError(t, r.Stats(&state.Stats{
			Total: 3, Valid: 2, Invalid: 1, AverageComplexity: 4.5,
			ByClass:  map[string]int{"LP": 2},
			ByStatus: map[string]int{"Optimal": 2},
		}))
		s := out.String()
		assert.Contains(t, s, "- **Records:** 3")
		assert.Contains(t, s, "- **Average complexity:** 4.5")
		assert.Contains(t, s, "| class ")
		assert.Contains(t, s, "| Optimal ")
	})
}
