package lint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapopt/pkg/lint"
	_ "github.com/leapstack-labs/leapopt/pkg/lint/rules" // register rules
)

func ruleIDs(diags []lint.Diagnostic) []string {
	ids := make([]string, 0, len(diags))
	for _, d := range diags {
		ids = append(ids, d.RuleID)
	}
	return ids
}

func TestAnalyzer_SourceRulesRunOnParseFailure(t *testing.T) {
	in := lint.NewInput("var x\nmin: (x +")
	require.Error(t, in.ParseErr)
	assert.Nil(t, in.Model())

	diags := lint.NewAnalyzer(nil).AnalyzeInput(in)
	assert.Equal(t, []string{"SY01"}, ruleIDs(diags))
	assert.True(t, lint.HasErrors(diags))
}

func TestAnalyzer_Ordering(t *testing.T) {
	diags := lint.NewAnalyzer(nil).Analyze("var y\nmin: x\nmax: x")
	assert.Equal(t, []string{"VR01", "VR03", "OB02"}, ruleIDs(diags))
}

func TestAnalyzer_Config(t *testing.T) {
	source := "var y\nmin: x"

	t.Run("disable", func(t *testing.T) {
		cfg := lint.NewConfig().Disable("VR03")
		assert.Equal(t, []string{"VR01"}, ruleIDs(lint.NewAnalyzer(cfg).Analyze(source)))
	})

	t.Run("severity override", func(t *testing.T) {
		cfg := lint.NewConfig().SetSeverity("VR01", lint.SeverityError)
		diags := lint.NewAnalyzer(cfg).Analyze(source)
		require.NotEmpty(t, diags)
		assert.Equal(t, "VR01", diags[0].RuleID)
		assert.Equal(t, lint.SeverityError, diags[0].Severity)
		assert.True(t, lint.HasErrors(diags))
	})
}

func TestRegistry(t *testing.T) {
	all := lint.GetAll()
	assert.Equal(t, 14, lint.Count())
	require.Len(t, all, 14)
	assert.Equal(t, "CN01", all[0].ID)

	rule, ok := lint.GetByID("CX01")
	require.True(t, ok)
	assert.Equal(t, []string{"max_total"}, rule.Info().ConfigKeys)
	assert.Len(t, lint.GetByGroup("variable"), 3)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want lint.Severity
	}{
		{"error", lint.SeverityError},
		{"WARN", lint.SeverityWarning},
		{"info", lint.SeverityInfo},
		{"hint", lint.SeverityHint},
	}
	for _, tt := range tests {
		got, err := lint.ParseSeverity(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := lint.ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestDiagnostic_String(t *testing.T) {
	d := lint.Diagnostic{RuleID: "OB01", Severity: lint.SeverityWarning, Message: "no objective"}
	d.Pos.Line, d.Pos.Column = 1, 1
	assert.Equal(t, "1:1 warning OB01 no objective", d.String())
}

func TestOptions(t *testing.T) {
	opts := map[string]any{
		"limit":  12.0,
		"name":   "cap",
		"strict": true,
		"names":  []any{"a", 2, "b"},
		"list":   " a, ,b ",
	}

	assert.Equal(t, 12, lint.GetIntOption(opts, "limit", 1))
	assert.Equal(t, 1, lint.GetIntOption(opts, "name", 1))
	assert.Equal(t, 1, lint.GetIntOption(nil, "limit", 1))

	assert.Equal(t, "cap", lint.GetStringOption(opts, "name", "x"))
	assert.Equal(t, "x", lint.GetStringOption(opts, "limit", "x"))

	assert.True(t, lint.GetBoolOption(opts, "strict", false))
	assert.False(t, lint.GetBoolOption(opts, "missing", false))

	assert.Equal(t, []string{"a", "b"}, lint.GetStringSliceOption(opts, "names", nil))
	assert.Equal(t, []string{"a", "b"}, lint.GetStringSliceOption(opts, "list", nil))
	assert.Equal(t, []string{"z"}, lint.GetStringSliceOption(opts, "strict", []string{"z"}))
}
