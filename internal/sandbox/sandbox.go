// Package sandbox executes generated model programs in a Starlark
// interpreter and hands the resulting problem to a solver backend.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapopt/pkg/codegen"
	"github.com/leapstack-labs/leapopt/pkg/solver"
	"github.com/leapstack-labs/leapopt/pkg/table"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// DefaultMaxSteps caps the Starlark steps of one program run.
const DefaultMaxSteps = 50_000_000

// fileOptions matches the dialect generated programs are written in.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	GlobalReassign:  true,
	TopLevelControl: true,
}

// Runtime is the data a program runs against.
type Runtime struct {
	// Data holds bound sets and parameters by declared name.
	Data map[string]any
	// Tables holds the tabular inputs by name.
	Tables map[string]*table.Table
}

// Options configures execution.
type Options struct {
	// Backend names the solver backend; empty means solver.DefaultBackend.
	Backend string
	Solver  solver.Options
	// MaxSteps bounds interpreter steps; zero means DefaultMaxSteps.
	MaxSteps uint64
	Logger   *slog.Logger
}

// ExecutionError reports a failure while running a generated program.
type ExecutionError struct {
	Pos     syntax.Position
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("execution error at line %d: %s", e.Pos.Line, e.Message)
	}
	return "execution error: " + e.Message
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func newExecutionError(err error) *ExecutionError {
	ee := &ExecutionError{Message: err.Error(), Err: err}
	var (
		evalErr *starlark.EvalError
		synErr  syntax.Error
	)
	if errors.As(err, &synErr) {
		ee.Message = synErr.Msg
		ee.Pos = synErr.Pos
	}
	if errors.As(err, &evalErr) {
		ee.Message = evalErr.Msg
		if len(evalErr.CallStack) > 0 {
			ee.Pos = evalErr.CallStack[0].Pos
		}
		// innermost frame in the program
		for _, fr := range evalErr.CallStack {
			if fr.Pos.Filename() == programFile {
				ee.Pos = fr.Pos
			}
		}
	}
	return ee
}

const programFile = "model.star"

// Build runs program and returns the problem it constructs in the global
// prob. Every failure is an *ExecutionError.
func Build(ctx context.Context, program string, rt Runtime, opts Options) (*solver.Problem, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	predeclared, err := predeclare(rt)
	if err != nil {
		return nil, &ExecutionError{Message: err.Error(), Err: err}
	}

	thread := &starlark.Thread{
		Name: "model",
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info(msg, slog.String("source", "program"))
		},
	}
	maxSteps := opts.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	thread.SetMaxExecutionSteps(maxSteps)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, programFile, program, predeclared)
	if err != nil {
		return nil, newExecutionError(err)
	}

	v, ok := globals[codegen.ProblemVar]
	if !ok {
		err := fmt.Errorf("program did not define %q", codegen.ProblemVar)
		return nil, &ExecutionError{Message: err.Error(), Err: err}
	}
	prob, ok := v.(*Problem)
	if !ok {
		err := fmt.Errorf("%s is a %s, not lp.problem", codegen.ProblemVar, v.Type())
		return nil, &ExecutionError{Message: err.Error(), Err: err}
	}
	if err := prob.p.Check(); err != nil {
		return nil, &ExecutionError{Message: err.Error(), Err: err}
	}

	logger.Debug("program executed",
		slog.Uint64("steps", thread.ExecutionSteps()),
		slog.Int("constraints", len(prob.p.Constraints)))
	return prob.p, nil
}

func predeclare(rt Runtime) (starlark.StringDict, error) {
	data := starlark.NewDict(len(rt.Data))
	if len(rt.Data) > 0 {
		v, err := GoToStarlark(rt.Data)
		if err != nil {
			return nil, fmt.Errorf("converting data: %w", err)
		}
		data = v.(*starlark.Dict)
	}
	tables := rt.Tables
	if tables == nil {
		tables = map[string]*table.Table{}
	}
	return starlark.StringDict{
		"lp":     Module(),
		"data":   data,
		"tables": &Tables{tables: tables},
	}, nil
}

// Execute builds the problem and solves it. It never returns nil; failures
// are reported through the result status.
func Execute(ctx context.Context, program string, rt Runtime, opts Options) *solver.Result {
	start := time.Now()
	name := opts.Backend
	if name == "" {
		name = solver.DefaultBackend
	}

	p, err := Build(ctx, program, rt, opts)
	if err != nil {
		return solver.Failure(solver.StatusExecutionError, name, time.Since(start), err)
	}

	backend, err := solver.Lookup(opts.Backend)
	if err != nil {
		return solver.Failure(solver.StatusSolverError, name, time.Since(start), err)
	}

	so := opts.Solver
	if so.Logger == nil {
		so.Logger = opts.Logger
	}
	res := solver.Run(ctx, backend, p, so)
	res.Elapsed = time.Since(start)
	return res
}
