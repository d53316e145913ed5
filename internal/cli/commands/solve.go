package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapopt/internal/cli/output"
	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/solver"
	"github.com/spf13/cobra"
)

// SolveOptions holds options for the solve command.
type SolveOptions struct {
	Data    []string
	NonZero bool
}

// NewSolveCommand creates the solve command.
func NewSolveCommand() *cobra.Command {
	opts := &SolveOptions{}
	cmd := &cobra.Command{
		Use:   "solve <file|text>",
		Short: "Compile and solve a model",
		Long: `Compile a model, run the generated program and solve the problem it
builds.

Infeasible and unbounded problems are results, not failures. The command
fails when the program cannot run or the solver errors. Each run is
recorded in the history database unless history is disabled.`,
		Example: `  # Solve with data
  leapopt solve plan.oml --data plan.yaml

  # Only show variables with a value
  leapopt solve plan.oml --nonzero

  # Bound branch-and-bound time
  leapopt solve plan.oml --time-limit 10s -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Data, "data", "d", nil, "Data files to bind (repeatable)")
	cmd.Flags().BoolVar(&opts.NonZero, "nonzero", false, "Only show variables with a non-zero value")
	cmd.Flags().String("backend", "", "Solver backend (overrides solver.backend)")
	cmd.Flags().Duration("time-limit", 0, "Solve time limit, e.g. 30s (overrides solver.time_limit)")
	cmd.Flags().Int("max-nodes", 0, "Branch-and-bound node limit (overrides solver.max_nodes)")
	_ = cmd.RegisterFlagCompletionFunc("backend", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return solver.List(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runSolve(cmd *cobra.Command, arg string, opts *SolveOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	in, err := readModel(arg)
	if err != nil {
		return err
	}

	store, cleanup, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	rec := state.NewRecord(in.Name(), in.Source)
	m, err := cmdCtx.Compile(ctx, in, opts.Data)
	rec.SetCompiled(m, err)
	if err != nil {
		saveRecord(ctx, cmdCtx, store, rec)
		return err
	}
	for _, w := range m.Warnings() {
		r.Warning(w.String())
	}

	res := m.Solve(ctx, cmdCtx.SolveOptions())
	rec.SetResult(res)
	saveRecord(ctx, cmdCtx, store, rec)

	out := output.SolveOutput{Name: in.Name(), Summary: m.Summary(), Result: res}
	if store != nil {
		out.RecordID = rec.ID
	}
	if err := r.SolveResult(out, opts.NonZero); err != nil {
		return err
	}

	switch res.Status {
	case solver.StatusExecutionError, solver.StatusSolverError:
		return fmt.Errorf("solve failed: %s", res.Status)
	}
	return nil
}

func saveRecord(ctx context.Context, cmdCtx *CommandContext, store state.Store, rec *state.Record) {
	if store == nil {
		return
	}
	if err := store.Save(ctx, rec); err != nil {
		cmdCtx.Logger.Warn("failed to record history", slog.String("error", err.Error()))
	}
}

func outputFor(m *compiler.CompiledModel, res *solver.Result) output.SolveOutput {
	return output.SolveOutput{Summary: m.Summary(), Result: res}
}
