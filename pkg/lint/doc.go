// Package lint checks model source for mistakes and style problems that
// the compiler accepts or reports less helpfully.
//
// # Rule Registration
//
// Rules are registered via init() functions when their packages are
// imported:
//
//	import _ "github.com/leapstack-labs/leapopt/pkg/lint/rules"
//
// # Rule Categories
//
//   - SY (Syntax): balanced brackets, terminated strings, empty models
//   - OB (Objective): missing, repeated or constant objectives
//   - CN (Constraint): relations and constraint names
//   - VR (Variable): unused, reserved and undeclared decision variables
//   - CX (Complexity): thresholds on the complexity counters
//
// Source-level rules (SY) run even when the model does not parse; the
// others need the transformed model.
//
// # Configuration
//
//	config := lint.NewConfig()
//	config.Disable("VR03")
//	config.SetSeverity("OB01", lint.SeverityError)
//	config.SetRuleOptions("CX01", map[string]any{"max_total": 80})
package lint
