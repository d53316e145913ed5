package variable

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/codegen"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/token"
)

func init() {
	lint.Register(Unused)
	lint.Register(Reserved)
	lint.Register(Undeclared)
}

// Unused warns about declared variables that nothing references.
// Names starting with the "ignore_prefix" option are skipped.
var Unused = lint.RuleDef{
	ID:          "VR01",
	Name:        "variable.unused",
	Group:       "variable",
	Description: "Declared decision variables should be used.",
	Severity:    lint.SeverityWarning,
	Check:       checkUnused,
}

func checkUnused(in *lint.Input, opts map[string]any) []lint.Diagnostic {
	prefix := lint.GetStringOption(opts, "ignore_prefix", "")
	var diags []lint.Diagnostic
	for _, v := range in.Model().Vars() {
		if prefix != "" && strings.HasPrefix(v.Name, prefix) {
			continue
		}
		if in.Usage.Refs[v.Name] == 0 {
			diags = append(diags, lint.Diagnostic{
				Message: fmt.Sprintf("variable %q is declared but never used", v.Name),
				Pos:     v.Pos(),
			})
		}
	}
	return diags
}

// Reserved reports variables named after words of the runtime.
var Reserved = lint.RuleDef{
	ID:          "VR02",
	Name:        "variable.reserved",
	Group:       "variable",
	Description: "Variable names must not be reserved words or function names.",
	Severity:    lint.SeverityError,
	Check:       checkReserved,
}

func checkReserved(in *lint.Input, _ map[string]any) []lint.Diagnostic {
	var diags []lint.Diagnostic
	check := func(name string, pos token.Position) {
		switch {
		case codegen.IsReserved(name):
			diags = append(diags, lint.Diagnostic{
				Message: fmt.Sprintf("variable %q uses a reserved word and is renamed to %q", name, codegen.Sanitize(name)),
				Pos:     pos,
			})
		case codegen.IsFunction(name):
			diags = append(diags, lint.Diagnostic{
				Message: fmt.Sprintf("variable %q shadows the function %s()", name, name),
				Pos:     pos,
			})
		}
	}
	for _, v := range in.Model().Vars() {
		check(v.Name, v.Pos())
	}
	for _, v := range in.Usage.Implicit {
		check(v.Name, firstUse(in.Model(), v.Name))
	}
	return diags
}

// Undeclared reports names used as variables without a declaration.
// The "allow" option lists names that may stay implicit.
var Undeclared = lint.RuleDef{
	ID:          "VR03",
	Name:        "variable.undeclared",
	Group:       "variable",
	Description: "Variables used without a declaration are continuous and non-negative.",
	Severity:    lint.SeverityInfo,
	Check:       checkUndeclared,
}

func checkUndeclared(in *lint.Input, opts map[string]any) []lint.Diagnostic {
	allow := lint.GetStringSliceOption(opts, "allow", nil)
	var diags []lint.Diagnostic
	for _, v := range in.Usage.Implicit {
		if slices.Contains(allow, v.Name) {
			continue
		}
		diags = append(diags, lint.Diagnostic{
			Message: fmt.Sprintf("%q is not declared; it is treated as a continuous variable >= 0", v.Key()),
			Pos:     firstUse(in.Model(), v.Name),
		})
	}
	return diags
}

// firstUse returns the position of the first reference to name.
func firstUse(m *ast.Model, name string) token.Position {
	var pos token.Position
	ast.Walk(m, func(n ast.Node) bool {
		if pos.IsValid() {
			return false
		}
		switch n := n.(type) {
		case *ast.VarRef:
			if n.Name == name {
				pos = n.Pos()
			}
		case *ast.IndexedVar:
			if n.Name == name {
				pos = n.Pos()
			}
		}
		return !pos.IsValid()
	})
	return pos
}
