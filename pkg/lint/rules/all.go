package rules

// Import all rule subpackages to register them with the global registry.
import (
	_ "github.com/leapstack-labs/leapopt/pkg/lint/rules/complexity"
	_ "github.com/leapstack-labs/leapopt/pkg/lint/rules/constraint"
	_ "github.com/leapstack-labs/leapopt/pkg/lint/rules/objective"
	_ "github.com/leapstack-labs/leapopt/pkg/lint/rules/syntax"
	_ "github.com/leapstack-labs/leapopt/pkg/lint/rules/variable"
)
