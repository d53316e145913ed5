package constraint

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/lint"
)

func init() {
	lint.Register(NoRelation)
	lint.Register(DuplicateName)
}

// NoRelation reports constraints whose body is not a comparison.
var NoRelation = lint.RuleDef{
	ID:          "CN01",
	Name:        "constraint.no_relation",
	Group:       "constraint",
	Description: "A constraint body must compare two expressions with <=, >= or ==.",
	Severity:    lint.SeverityError,
	Check:       checkNoRelation,
}

func checkNoRelation(in *lint.Input, _ map[string]any) []lint.Diagnostic {
	var diags []lint.Diagnostic
	for _, c := range in.Model().Constraints() {
		if _, ok := c.Expr.(*ast.Comparison); ok {
			continue
		}
		diags = append(diags, lint.Diagnostic{
			Message: fmt.Sprintf("constraint %s has no relational operator", label(c)),
			Pos:     c.Pos(),
		})
	}
	return diags
}

// DuplicateName warns about two constraints sharing a name. With
// "case_sensitive: false", names differing only in case also collide.
var DuplicateName = lint.RuleDef{
	ID:          "CN02",
	Name:        "constraint.duplicate_name",
	Group:       "constraint",
	Description: "Constraint names should be unique.",
	Severity:    lint.SeverityWarning,
	Check:       checkDuplicateName,
}

func checkDuplicateName(in *lint.Input, opts map[string]any) []lint.Diagnostic {
	caseSensitive := lint.GetBoolOption(opts, "case_sensitive", true)
	seen := make(map[string]int)
	var diags []lint.Diagnostic
	for _, c := range in.Model().Constraints() {
		if c.Name == "" {
			continue
		}
		key := c.Name
		if !caseSensitive {
			key = strings.ToLower(key)
		}
		if line, ok := seen[key]; ok {
			diags = append(diags, lint.Diagnostic{
				Message: fmt.Sprintf("constraint name %q is already used at line %d", c.Name, line),
				Pos:     c.Pos(),
			})
			continue
		}
		seen[key] = c.Pos().Line
	}
	return diags
}

func label(c *ast.Constraint) string {
	if c.Name != "" {
		return fmt.Sprintf("%q", c.Name)
	}
	return fmt.Sprintf("%q", ast.Format(c.Expr))
}
