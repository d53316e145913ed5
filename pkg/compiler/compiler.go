// Package compiler is the entry point for turning model source into a
// solvable program. Compile runs the whole front end (parse, transform,
// validate, bind, generate) and returns an immutable CompiledModel that can
// be solved any number of times, concurrently.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/leapstack-labs/leapopt/internal/sandbox"
	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/binding"
	"github.com/leapstack-labs/leapopt/pkg/codegen"
	"github.com/leapstack-labs/leapopt/pkg/solver"
	"github.com/leapstack-labs/leapopt/pkg/table"
)

// Options configures Compile.
type Options struct {
	// Tables holds caller inputs by name: *table.Table values, sequences,
	// scalars or nested maps. They override tables loaded by imports.
	Tables map[string]any
	// BaseDir resolves relative import paths.
	BaseDir string
	// Loader reads imported files. Nil skips imports with a warning.
	Loader binding.Loader
	// Strict turns binding warnings into errors.
	Strict bool
	// Name is the problem name; empty means codegen.DefaultName.
	Name   string
	Logger *slog.Logger
}

// SolveOptions configures one solve of a compiled model.
type SolveOptions struct {
	Backend   string
	TimeLimit time.Duration
	MaxNodes  int
	// MaxSteps bounds the interpreter; zero means sandbox.DefaultMaxSteps.
	MaxSteps uint64
	Verbose  bool
	Logger   *slog.Logger
}

// CompiledModel is the immutable output of Compile.
type CompiledModel struct {
	source  string
	result  *ast.Result
	program string
	bound   *binding.Result
	logger  *slog.Logger
}

// Compile parses, validates, binds and generates source. Syntax errors are
// a parser.ErrorList, validation failures joined ast.ValidationErrors,
// lowering failures joined codegen.TranslationErrors.
func Compile(ctx context.Context, source string, opts Options) (*CompiledModel, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	start := time.Now()

	res, err := ast.Parse(source)
	if err != nil {
		return nil, err
	}
	if err := ast.Validate(res.Model); err != nil {
		return nil, err
	}

	bound, err := binding.New(binding.Options{
		Loader:  opts.Loader,
		BaseDir: opts.BaseDir,
		Strict:  opts.Strict,
		Logger:  logger,
	}).Bind(ctx, res.Model, opts.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to bind data: %w", err)
	}

	program, err := codegen.New(codegen.Options{Name: opts.Name}).Generate(res.Model)
	if err != nil {
		return nil, err
	}

	logger.Debug("model compiled",
		slog.String("class", string(ast.Classify(res.Model))),
		slog.Int("variables", len(res.Variables)),
		slog.Int("warnings", len(bound.Warnings)),
		slog.Duration("elapsed", time.Since(start)))

	return &CompiledModel{
		source:  source,
		result:  res,
		program: program,
		bound:   bound,
		logger:  logger,
	}, nil
}

// Source returns the model text.
func (m *CompiledModel) Source() string { return m.source }

// AST returns the model tree. Callers must not modify it.
func (m *CompiledModel) AST() *ast.Model { return m.result.Model }

// Program returns the generated program.
func (m *CompiledModel) Program() string { return m.program }

// Variables returns the decision variables, sorted by identity.
func (m *CompiledModel) Variables() []ast.Variable {
	out := make([]ast.Variable, len(m.result.Variables))
	for i, v := range m.result.Variables {
		v.Indices = append([]string(nil), v.Indices...)
		out[i] = v
	}
	return out
}

// Datasets returns the referenced table columns.
func (m *CompiledModel) Datasets() []ast.DatasetRef {
	return append([]ast.DatasetRef(nil), m.result.Datasets...)
}

// Complexity returns the complexity counters of the model.
func (m *CompiledModel) Complexity() ast.Complexity { return m.result.Complexity }

// Bound returns a deep copy of the bound set and parameter values.
func (m *CompiledModel) Bound() map[string]any {
	out := make(map[string]any, len(m.bound.Values))
	for name, v := range m.bound.Values {
		out[name] = cloneValue(v)
	}
	return out
}

// cloneValue copies the nested maps and sequences of a bound value.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[any]any:
		out := make(map[any]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// Tables returns every tabular input by name.
func (m *CompiledModel) Tables() map[string]*table.Table { return maps.Clone(m.bound.Tables) }

// Warnings returns the binding warnings.
func (m *CompiledModel) Warnings() []binding.Warning {
	return append([]binding.Warning(nil), m.bound.Warnings...)
}

// Class reports the problem class.
func (m *CompiledModel) Class() ast.Class { return ast.Classify(m.result.Model) }

func (m *CompiledModel) runtime() sandbox.Runtime {
	return sandbox.Runtime{Data: m.bound.Values, Tables: m.bound.Tables}
}

func (m *CompiledModel) sandboxOptions(opts SolveOptions) sandbox.Options {
	logger := opts.Logger
	if logger == nil {
		logger = m.logger
	}
	return sandbox.Options{
		Backend: opts.Backend,
		Solver: solver.Options{
			TimeLimit: opts.TimeLimit,
			MaxNodes:  opts.MaxNodes,
			Verbose:   opts.Verbose,
			Logger:    logger,
		},
		MaxSteps: opts.MaxSteps,
		Logger:   logger,
	}
}

// Solve executes the program and solves the problem it builds. Failures
// are reported through the result status, never as an error.
func (m *CompiledModel) Solve(ctx context.Context, opts SolveOptions) *solver.Result {
	return sandbox.Execute(ctx, m.program, m.runtime(), m.sandboxOptions(opts))
}

// Problem executes the program without solving, for export.
func (m *CompiledModel) Problem(ctx context.Context) (*solver.Problem, error) {
	return sandbox.Build(ctx, m.program, m.runtime(), m.sandboxOptions(SolveOptions{}))
}
