package objective

import (
	"fmt"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/token"
)

func init() {
	lint.Register(Missing)
	lint.Register(Multiple)
	lint.Register(Constant)
}

// Missing warns about models that only check feasibility.
var Missing = lint.RuleDef{
	ID:          "OB01",
	Name:        "objective.missing",
	Group:       "objective",
	Description: "Models without an objective only search for a feasible point.",
	Severity:    lint.SeverityWarning,
	Check:       checkMissing,
}

func checkMissing(in *lint.Input, _ map[string]any) []lint.Diagnostic {
	m := in.Model()
	if m.Objective() != nil || len(m.Statements) == 0 {
		return nil
	}
	return []lint.Diagnostic{{
		Message: "model has no minimize or maximize statement",
		Pos:     token.Position{Line: 1, Column: 1},
	}}
}

// Multiple warns that only the first objective is optimized.
var Multiple = lint.RuleDef{
	ID:          "OB02",
	Name:        "objective.multiple",
	Group:       "objective",
	Description: "Only the first objective is optimized; later ones are ignored.",
	Severity:    lint.SeverityWarning,
	Check:       checkMultiple,
}

func checkMultiple(in *lint.Input, _ map[string]any) []lint.Diagnostic {
	objs := in.Model().Objectives()
	if len(objs) < 2 {
		return nil
	}
	first := objs[0].Pos()
	var diags []lint.Diagnostic
	for _, o := range objs[1:] {
		diags = append(diags, lint.Diagnostic{
			Message: fmt.Sprintf("objective ignored; the %s objective at line %d is used", objs[0].Sense, first.Line),
			Pos:     o.Pos(),
		})
	}
	return diags
}

// Constant reports objectives that cannot change with the decision.
var Constant = lint.RuleDef{
	ID:          "OB03",
	Name:        "objective.constant",
	Group:       "objective",
	Description: "An objective must reference at least one decision variable.",
	Severity:    lint.SeverityError,
	Check:       checkConstant,
}

func checkConstant(in *lint.Input, _ map[string]any) []lint.Diagnostic {
	m := in.Model()
	var diags []lint.Diagnostic
	for _, o := range m.Objectives() {
		if !ast.ReferencesVariable(m, o.Expr) {
			diags = append(diags, lint.Diagnostic{
				Message: fmt.Sprintf("objective %q does not reference any decision variable", ast.Format(o.Expr)),
				Pos:     o.Pos(),
			})
		}
	}
	return diags
}
