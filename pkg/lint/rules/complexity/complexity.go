package complexity

import (
	"fmt"

	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/token"
)

func init() {
	lint.Register(Total)
	lint.Register(Nesting)
	lint.Register(Variables)
}

// Default thresholds.
const (
	DefaultMaxTotal     = 50
	DefaultMaxNesting   = 5
	DefaultMaxVariables = 20
)

var origin = token.Position{Line: 1, Column: 1}

// Total warns when the weighted complexity score is high.
var Total = lint.RuleDef{
	ID:          "CX01",
	Name:        "complexity.total",
	Group:       "complexity",
	Description: "The total complexity score should stay below max_total.",
	Severity:    lint.SeverityWarning,
	ConfigKeys:  []string{"max_total"},
	Check:       checkTotal,
}

func checkTotal(in *lint.Input, opts map[string]any) []lint.Diagnostic {
	c := in.Result.Complexity
	limit := lint.GetIntOption(opts, "max_total", DefaultMaxTotal)
	if c.Total() <= limit {
		return nil
	}
	return []lint.Diagnostic{{
		Message: fmt.Sprintf("complexity %d exceeds %d (%s)", c.Total(), limit, c.Level()),
		Pos:     origin,
	}}
}

// Nesting warns about deeply nested expressions.
var Nesting = lint.RuleDef{
	ID:          "CX02",
	Name:        "complexity.nesting",
	Group:       "complexity",
	Description: "Expression nesting should stay below max_nesting.",
	Severity:    lint.SeverityWarning,
	ConfigKeys:  []string{"max_nesting"},
	Check:       checkNesting,
}

func checkNesting(in *lint.Input, opts map[string]any) []lint.Diagnostic {
	c := in.Result.Complexity
	limit := lint.GetIntOption(opts, "max_nesting", DefaultMaxNesting)
	if c.NestingLevel <= limit {
		return nil
	}
	return []lint.Diagnostic{{
		Message: fmt.Sprintf("nesting level %d exceeds %d", c.NestingLevel, limit),
		Pos:     origin,
	}}
}

// Variables notes models with many distinct variables.
var Variables = lint.RuleDef{
	ID:          "CX03",
	Name:        "complexity.variables",
	Group:       "complexity",
	Description: "The number of distinct decision variables should stay below max_variables.",
	Severity:    lint.SeverityInfo,
	ConfigKeys:  []string{"max_variables"},
	Check:       checkVariables,
}

func checkVariables(in *lint.Input, opts map[string]any) []lint.Diagnostic {
	n := len(in.Result.Variables)
	limit := lint.GetIntOption(opts, "max_variables", DefaultMaxVariables)
	if n <= limit {
		return nil
	}
	return []lint.Diagnostic{{
		Message: fmt.Sprintf("%d decision variables exceed %d", n, limit),
		Pos:     origin,
	}}
}
