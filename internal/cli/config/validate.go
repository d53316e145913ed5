package config

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapopt/internal/adapter"
	"github.com/leapstack-labs/leapopt/internal/cli/output"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/solver"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !output.Mode(c.Output).Valid() {
		return fmt.Errorf("invalid output mode %q\nHint: Use one of auto, text, markdown, json", c.Output)
	}
	if c.Solver.TimeLimit < 0 {
		return fmt.Errorf("solver.time_limit must not be negative, got %s", c.Solver.TimeLimit)
	}
	if c.Solver.MaxNodes < 0 {
		return fmt.Errorf("solver.max_nodes must not be negative, got %d", c.Solver.MaxNodes)
	}
	if c.Solver.Backend != "" {
		if _, err := solver.Lookup(c.Solver.Backend); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src := c.Sources[name]
		if src.Type == "" {
			return fmt.Errorf("sources.%s: type is required", name)
		}
		if !adapter.IsRegistered(src.Type) {
			return &adapter.UnknownAdapterError{Type: src.Type, Available: adapter.ListAdapters()}
		}
	}

	if _, err := c.LintConfig(); err != nil {
		return err
	}
	return nil
}

// LintConfig converts the lint section into an analyzer configuration.
func (c *Config) LintConfig() (*lint.Config, error) {
	lc := lint.NewConfig()
	for _, id := range c.Lint.Disabled {
		lc.Disable(id)
	}
	for id, name := range c.Lint.Severity {
		sev, err := lint.ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("lint.severity.%s: %w", id, err)
		}
		lc.SetSeverity(id, sev)
	}
	for id, opts := range c.Lint.Rules {
		lc.SetRuleOptions(id, opts)
	}
	return lc, nil
}
