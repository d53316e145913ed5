package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/leapopt/internal/cli/config"
	"github.com/leapstack-labs/leapopt/internal/cli/output"
	"github.com/leapstack-labs/leapopt/internal/engine"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	_ "github.com/leapstack-labs/leapopt/pkg/lint/rules" // register rules
	"github.com/spf13/cobra"
)

// LintOptions holds options for the lint command.
type LintOptions struct {
	Disable  []string // Rule IDs to disable
	Severity string   // Minimum severity: error, warning, info, hint
	Rules    []string // Run only specific rules
}

// errLintIssues signals issues at or above the threshold.
var errLintIssues = errors.New("lint issues found")

// NewLintCommand creates the lint command.
func NewLintCommand() *cobra.Command {
	opts := &LintOptions{}
	cmd := &cobra.Command{
		Use:   "lint <path|text>...",
		Short: "Run lint rules on models",
		Long: `Analyze models for likely mistakes.

Arguments are model files, directories (searched for .oml, .los and .mod
files) or model text. Syntax rules run even when a model does not parse.
Rules can be configured in leapopt.yaml under lint.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Lint every model below the current directory
  leapopt lint .

  # Disable specific rules
  leapopt lint plan.oml --disable VR03,CX03

  # Only report errors
  leapopt lint models/ --severity error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Disable, "disable", nil, "Rule IDs to disable")
	cmd.Flags().StringVar(&opts.Severity, "severity", "hint", "Minimum severity: error, warning, info, hint")
	cmd.Flags().StringSliceVar(&opts.Rules, "rule", nil, "Run only specific rules")
	return cmd
}

func runLint(cmd *cobra.Command, args []string, opts *LintOptions) error {
	cmdCtx := NewCommandContext(cmd)

	threshold, err := lint.ParseSeverity(opts.Severity)
	if err != nil {
		return fmt.Errorf("invalid --severity: %w", err)
	}
	lintCfg, err := buildLintConfig(cmdCtx.Cfg, opts)
	if err != nil {
		return err
	}
	analyzer := lint.NewAnalyzer(lintCfg)

	inputs, err := lintInputs(args)
	if err != nil {
		return err
	}

	results := make([]output.LintFileResult, 0, len(inputs))
	for _, in := range inputs {
		diags := filterBySeverity(analyzer.Analyze(in.Source), threshold)
		path := in.Path
		if path == "" {
			path = "<inline>"
		}
		results = append(results, output.ToLintFileResult(path, diags))
	}

	found, err := cmdCtx.Renderer.Diagnostics(results)
	if err != nil {
		return err
	}
	if found {
		return errLintIssues
	}
	return nil
}

// buildLintConfig layers command-line flags over the configured lint section.
func buildLintConfig(cfg *config.Config, opts *LintOptions) (*lint.Config, error) {
	lintCfg, err := cfg.LintConfig()
	if err != nil {
		return nil, err
	}
	for _, id := range opts.Disable {
		lintCfg.Disable(strings.TrimSpace(id))
	}

	// If --rule specified, disable all others
	if len(opts.Rules) > 0 {
		enabled := make(map[string]bool)
		for _, id := range opts.Rules {
			enabled[strings.TrimSpace(id)] = true
		}
		for _, rule := range lint.GetAll() {
			if !enabled[rule.ID] {
				lintCfg.Disable(rule.ID)
			}
		}
	}
	return lintCfg, nil
}

// lintInputs expands directories into their model files.
func lintInputs(args []string) ([]modelInput, error) {
	var inputs []modelInput
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			paths, err := engine.Discover(arg, "")
			if err != nil {
				return nil, err
			}
			for _, path := range paths {
				data, err := os.ReadFile(path)
				if err != nil {
					return nil, fmt.Errorf("failed to read %s: %w", path, err)
				}
				inputs = append(inputs, modelInput{Source: string(data), Path: path})
			}
			continue
		}
		source, path, err := compiler.ResolveSource(arg)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, modelInput{Source: source, Path: path})
	}
	return inputs, nil
}

// filterBySeverity keeps diagnostics at least as severe as threshold.
func filterBySeverity(diags []lint.Diagnostic, threshold lint.Severity) []lint.Diagnostic {
	var filtered []lint.Diagnostic
	for _, d := range diags {
		if d.Severity <= threshold {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
