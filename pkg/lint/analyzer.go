package lint

import (
	"sort"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/parser"
)

// Analyzer runs the registered rules against model source.
type Analyzer struct {
	config *Config
}

// NewAnalyzer creates a new analyzer with optional configuration.
func NewAnalyzer(config *Config) *Analyzer {
	if config == nil {
		config = NewConfig()
	}
	return &Analyzer{config: config}
}

// NewInput tokenizes and, when possible, parses source.
func NewInput(source string) *Input {
	in := &Input{Source: source, Tokens: parser.Tokenize(source)}
	res, err := ast.Parse(source)
	if err != nil {
		in.ParseErr = err
		return in
	}
	in.Result = res
	in.Usage = ast.Scan(res.Model)
	return in
}

// Analyze runs every enabled rule and returns diagnostics ordered by
// position, then rule ID.
func (a *Analyzer) Analyze(source string) []Diagnostic {
	return a.AnalyzeInput(NewInput(source))
}

// AnalyzeInput runs every enabled rule against a prepared input.
func (a *Analyzer) AnalyzeInput(in *Input) []Diagnostic {
	var diagnostics []Diagnostic
	for _, rule := range GetAll() {
		// Skip disabled rules
		if a.config.IsDisabled(rule.ID) {
			continue
		}
		if in.Result == nil && !rule.Source {
			continue
		}

		diags := rule.Check(in, a.config.GetRuleOptions(rule.ID))
		severity := a.config.GetSeverity(rule.ID, rule.Severity)
		for i := range diags {
			diags[i].RuleID = rule.ID
			diags[i].Severity = severity
		}
		diagnostics = append(diagnostics, diags...)
	}

	sort.SliceStable(diagnostics, func(i, j int) bool {
		pi, pj := diagnostics[i].Pos, diagnostics[j].Pos
		if pi.Line != pj.Line {
			return pi.Line < pj.Line
		}
		if pi.Column != pj.Column {
			return pi.Column < pj.Column
		}
		return diagnostics[i].RuleID < diagnostics[j].RuleID
	})
	return diagnostics
}
