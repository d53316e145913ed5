// Package rules provides the model lint rules.
//
// Rules are organized by category:
//   - syntax: source-level checks that run even on unparsable input (SY01-SY03)
//   - objective: objective statements (OB01-OB03)
//   - constraint: constraint bodies and names (CN01-CN02)
//   - variable: decision variable declarations and uses (VR01-VR03)
//   - complexity: complexity thresholds (CX01-CX03)
//
// To register all rules with the global lint registry, import this package
// with a blank identifier:
//
//	import _ "github.com/leapstack-labs/leapopt/pkg/lint/rules"
package rules
