package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/leapopt/internal/cli/output"
	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/solver"
	"github.com/spf13/cobra"
)

// Emit formats of the compile command.
const (
	EmitProgram = "program"
	EmitAST     = "ast"
	EmitSummary = "summary"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	Data []string
	Emit string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}
	cmd := &cobra.Command{
		Use:   "compile <file|text>",
		Short: "Compile a model into an executable program",
		Long: `Compile a model and print the generated program.

The argument is a model file (.oml, .los, .mod, .txt) or the model text
itself. Data files given with --data are bound before code generation:
YAML and JSON documents contribute their top-level keys, CSV, TSV, Parquet
and NDJSON files become tables named after the file.`,
		Example: `  # Print the generated program
  leapopt compile plan.oml --data plan.yaml

  # Show the canonical model
  leapopt compile plan.oml --emit ast

  # Summarise an inline model
  leapopt compile "var x >= 0
maximize: x
st: x <= 4" --emit summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Data, "data", "d", nil, "Data files to bind (repeatable)")
	cmd.Flags().StringVar(&opts.Emit, "emit", EmitProgram, "What to print: program, ast, summary")
	_ = cmd.RegisterFlagCompletionFunc("emit", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{EmitProgram, EmitAST, EmitSummary}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runCompile(cmd *cobra.Command, arg string, opts *CompileOptions) error {
	switch opts.Emit {
	case EmitProgram, EmitAST, EmitSummary:
	default:
		return fmt.Errorf("invalid --emit %q\nHint: Use program, ast or summary", opts.Emit)
	}

	cmdCtx := NewCommandContext(cmd)
	in, err := readModel(arg)
	if err != nil {
		return err
	}
	m, err := cmdCtx.Compile(cmd.Context(), in, opts.Data)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	for _, w := range m.Warnings() {
		r.Warning(w.String())
	}

	switch opts.Emit {
	case EmitSummary:
		return r.ModelSummary(in.Name(), m.Summary())
	case EmitAST:
		return writeArtifact(r, "ast", ast.Format(m.AST()))
	default:
		return writeArtifact(r, "program", m.Program())
	}
}

// writeArtifact prints generated text as-is, or wrapped in an object in
// JSON mode.
func writeArtifact(r *output.Renderer, key, text string) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{key: text})
	}
	_, err := io.WriteString(r.Writer(), strings.TrimRight(text, "\n")+"\n")
	return err
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|text>",
		Short: "Check a model for syntax and semantic errors",
		Long: `Parse and validate a model without binding data or generating code.

Exits with a non-zero status when the model is invalid.`,
		Example: `  leapopt validate plan.oml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

type validateOutput struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func runValidate(cmd *cobra.Command, arg string) error {
	r := NewCommandContext(cmd).Renderer
	in, err := readModel(arg)
	if err != nil {
		return err
	}

	res, err := ast.Parse(in.Source)
	if err == nil {
		err = ast.Validate(res.Model)
	}

	out := validateOutput{Valid: err == nil, Errors: []string{}}
	if err != nil {
		out.Errors = splitLines(err.Error())
	}
	if r.EffectiveMode() == output.ModeJSON {
		if jsonErr := r.JSON(out); jsonErr != nil {
			return jsonErr
		}
	} else if out.Valid {
		r.Success("Model is valid")
	} else {
		for _, line := range out.Errors {
			r.Error(line)
		}
	}
	if !out.Valid {
		return errors.New("model is invalid")
	}
	return nil
}

// Export formats.
const (
	FormatLP      = "lp"
	FormatProgram = "program"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Data   []string
	Format string
	Out    string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}
	cmd := &cobra.Command{
		Use:   "export <file|text>",
		Short: "Export a model as an LP file or program",
		Long: `Build the optimization problem of a model and write it in CPLEX LP
format, or write the generated program.

LP export runs the program against the bound data, so every set and
parameter must resolve.`,
		Example: `  leapopt export plan.oml --data plan.yaml --format lp -O plan.lp`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Data, "data", "d", nil, "Data files to bind (repeatable)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", FormatLP, "Export format: lp, program")
	cmd.Flags().StringVarP(&opts.Out, "out", "O", "", "Write to file instead of standard output")
	return cmd
}

func runExport(cmd *cobra.Command, arg string, opts *ExportOptions) (err error) {
	if opts.Format != FormatLP && opts.Format != FormatProgram {
		return fmt.Errorf("invalid --format %q\nHint: Use lp or program", opts.Format)
	}

	cmdCtx := NewCommandContext(cmd)
	in, err := readModel(arg)
	if err != nil {
		return err
	}
	m, err := cmdCtx.Compile(cmd.Context(), in, opts.Data)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if opts.Out != "" {
		f, err := os.Create(opts.Out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.Out, err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if opts.Format == FormatProgram {
		_, err = io.WriteString(w, m.Program())
		return err
	}
	p, err := m.Problem(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to build problem: %w", err)
	}
	return solver.WriteLP(w, p)
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file|text>",
		Short: "Analyse a model or expression",
		Long: `Parse a model, or a single expression, and report its decision
variables, referenced dataset columns and complexity.

No data is bound, so models with unresolved sets can still be analysed.`,
		Example: `  leapopt parse "sum(custo[i] * x[i] for i in I)"
  leapopt parse plan.oml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := NewCommandContext(cmd).Renderer
			in, err := readModel(args[0])
			if err != nil {
				return err
			}
			s, err := compiler.Analyze(in.Source)
			if err != nil {
				return err
			}
			return r.ModelSummary(in.Name(), s)
		},
	}
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
