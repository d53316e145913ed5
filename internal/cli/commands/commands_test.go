package commands

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapopt/internal/adapter"
	"github.com/leapstack-labs/leapopt/internal/cli/config"
	"github.com/leapstack-labs/leapopt/internal/cli/output"
	clitestutil "github.com/leapstack-labs/leapopt/internal/cli/testutil"
	"github.com/leapstack-labs/leapopt/internal/testutil"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewCompileCommand(), "compile", []string{"data", "emit"}},
		{NewSolveCommand(), "solve", []string{"data", "nonzero", "backend", "time-limit", "max-nodes"}},
		{NewExportCommand(), "export", []string{"data", "format", "out"}},
		{NewLintCommand(), "lint", []string{"disable", "severity", "rule"}},
		{NewBatchCommand(), "batch", []string{"data", "solve", "workers", "pattern", "watch"}},
		{NewServeCommand(), "serve", []string{"addr"}},
		{NewREPLCommand(), "repl", []string{"data"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Name())
			assert.NotEmpty(t, tt.cmd.Short)
			for _, name := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(name), "missing flag --%s", name)
			}
		})
	}
}

func TestHistoryCommand_Subcommands(t *testing.T) {
	cmd := NewHistoryCommand()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "stats", "delete"}, names)
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "leapopt v1.2.3")
}

func TestModelInput_Name(t *testing.T) {
	assert.Equal(t, "plan", modelInput{Path: filepath.Join("models", "plan.oml")}.Name())
	assert.Equal(t, "", modelInput{Source: "var x"}.Name())
}

func TestLoadDataFiles(t *testing.T) {
	dir := t.TempDir()
	yamlPath := testutil.WriteFile(t, dir, "plan.yaml", clitestutil.ProductionData)
	jsonPath := testutil.WriteFile(t, dir, "extra.json", `{"capacidade": 30}`)

	inputs, err := loadDataFiles(context.Background(), []string{yamlPath, jsonPath}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"P", "lucro", "horas", "capacidade"}, sortedNames(inputs))

	_, err = loadDataFiles(context.Background(), []string{filepath.Join(dir, "missing.yaml")}, testutil.NewTestLogger(t))
	assert.Error(t, err)
}

func TestReferencedSources(t *testing.T) {
	sources := map[string]adapter.Config{
		"P":      {Type: "sqlite"},
		"lucro":  {Type: "sqlite"},
		"orders": {Type: "postgres"},
	}

	selected := referencedSources(clitestutil.ProductionModel, sources)
	assert.Equal(t, []string{"P", "lucro"}, sortedNames(selected))

	assert.Empty(t, referencedSources("maximize: (", sources))
	assert.Empty(t, referencedSources(clitestutil.ProductionModel, nil))
}

func TestFilterBySeverity(t *testing.T) {
	diags := []lint.Diagnostic{
		{RuleID: "SY01", Severity: lint.SeverityError},
		{RuleID: "VR01", Severity: lint.SeverityWarning},
		{RuleID: "VR03", Severity: lint.SeverityInfo},
	}

	tests := []struct {
		threshold lint.Severity
		want      int
	}{
		{lint.SeverityError, 1},
		{lint.SeverityWarning, 2},
		{lint.SeverityHint, 3},
	}
	for _, tt := range tests {
		t.Run(tt.threshold.String(), func(t *testing.T) {
			assert.Len(t, filterBySeverity(diags, tt.threshold), tt.want)
		})
	}
}

func TestBuildLintConfig(t *testing.T) {
	cfg := config.Default()

	t.Run("disable", func(t *testing.T) {
		lintCfg, err := buildLintConfig(cfg, &LintOptions{Disable: []string{"VR01", " CX03"}})
		require.NoError(t, err)
		assert.True(t, lintCfg.IsDisabled("VR01"))
		assert.True(t, lintCfg.IsDisabled("CX03"))
		assert.False(t, lintCfg.IsDisabled("OB01"))
	})

	t.Run("only selected rules", func(t *testing.T) {
		lintCfg, err := buildLintConfig(cfg, &LintOptions{Rules: []string{"OB01"}})
		require.NoError(t, err)
		assert.False(t, lintCfg.IsDisabled("OB01"))
		assert.True(t, lintCfg.IsDisabled("VR01"))
	})
}

type fakeReader struct {
	lines   []string
	prompts []string
}

func (f *fakeReader) Readline() (string, error) {
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakeReader) SetPrompt(prompt string) { f.prompts = append(f.prompts, prompt) }

func newTestSession(t *testing.T) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmdCtx := &CommandContext{
		Cfg:      config.Default(),
		Logger:   testutil.NewTestLogger(t),
		Renderer: output.NewRenderer(&out, &errOut, output.ModeMarkdown),
	}
	return newREPLSession(cmdCtx, nil), &out, &errOut
}

func TestREPLSession(t *testing.T) {
	s, out, errOut := newTestSession(t)
	lines := append(strings.Split(strings.TrimRight(clitestutil.SimpleModel, "\n"), "\n"),
		"",
		":program",
		":solve",
		":quit",
		"var never",
	)
	rl := &fakeReader{lines: lines}

	require.NoError(t, s.run(context.Background(), rl))

	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "- **Class:** LP")
	assert.Contains(t, out.String(), "lp.problem(")
	assert.Contains(t, out.String(), "- **Objective:** 12")
	assert.Equal(t, []string{"var never"}, rl.lines, ":quit should end the session")
	assert.Contains(t, rl.prompts, replContinuePrompt)
	assert.Equal(t, replPrompt, rl.prompts[len(rl.prompts)-1])
}

func TestREPLSession_Errors(t *testing.T) {
	s, _, errOut := newTestSession(t)
	rl := &fakeReader{lines: []string{
		":solve",
		":bogus",
		"maximize: (",
		"",
	}}

	require.NoError(t, s.run(context.Background(), rl))
	assert.Contains(t, errOut.String(), "nothing compiled yet")
	assert.Contains(t, errOut.String(), "unknown command :bogus")
	assert.Nil(t, s.last)
}
