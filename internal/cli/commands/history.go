package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded compile and solve runs",
		Long: `Inspect the history database (state_path in leapopt.yaml).

Every solve and batch run records the model source, the generated program,
its class and complexity, and the solve outcome.`,
	}
	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryStatsCommand())
	cmd.AddCommand(newHistoryDeleteCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var (
		limit int
		class string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent runs",
		Example: `  leapopt history list --limit 5
  leapopt history list --class MILP -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, cleanup, err := cmdCtx.requireStore()
			if err != nil {
				return err
			}
			defer cleanup()

			var records []*state.Record
			if class != "" {
				records, err = store.ListByClass(cmd.Context(), class, limit)
			} else {
				records, err = store.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			return cmdCtx.Renderer.History(records)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records (0 for all)")
	cmd.Flags().StringVar(&class, "class", "", "Only show models of this class (LP, MILP, ...)")
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, cleanup, err := cmdCtx.requireStore()
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, state.ErrNotFound) {
				return fmt.Errorf("no history record %s\nHint: Run 'leapopt history list' to see record IDs", args[0])
			}
			if err != nil {
				return err
			}
			return cmdCtx.Renderer.Record(rec)
		},
	}
}

func newHistoryStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, cleanup, err := cmdCtx.requireStore()
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return cmdCtx.Renderer.Stats(st)
		},
	}
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete runs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, cleanup, err := cmdCtx.requireStore()
			if err != nil {
				return err
			}
			defer cleanup()

			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					if errors.Is(err, state.ErrNotFound) {
						return fmt.Errorf("no history record %s", id)
					}
					return err
				}
				cmdCtx.Renderer.Success("Deleted " + id)
			}
			return nil
		},
	}
}
