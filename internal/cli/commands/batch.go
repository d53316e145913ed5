package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapopt/internal/engine"
	"github.com/spf13/cobra"
)

// BatchOptions holds options for the batch command.
type BatchOptions struct {
	Data    []string
	Solve   bool
	Workers int
	Pattern string
	Watch   bool
}

// NewBatchCommand creates the batch command.
func NewBatchCommand() *cobra.Command {
	opts := &BatchOptions{}
	cmd := &cobra.Command{
		Use:   "batch <dir|file|->",
		Short: "Compile many models at once",
		Long: `Compile every model of a directory, or every model of a document.

A directory is searched recursively for .oml, .los and .mod files. A file,
or standard input given as "-", is split into models on lines holding only
"---". A failing model never stops the batch; the command fails at the end
if any model failed.

With --watch the directory is processed once, then again whenever a model
file changes, until interrupted.`,
		Example: `  # Compile every model below models/
  leapopt batch models/

  # Compile and solve, four at a time
  leapopt batch models/ --solve --workers 4

  # Recompile on every save
  leapopt batch models/ --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Data, "data", "d", nil, "Data files bound into every model (repeatable)")
	cmd.Flags().BoolVar(&opts.Solve, "solve", false, "Solve every model that compiles")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Parallel compiles (default: number of CPUs)")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "Only process file names matching this glob")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reprocess models when they change")
	return cmd
}

func runBatch(cmd *cobra.Command, arg string, opts *BatchOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	tables, err := loadDataFiles(ctx, opts.Data, cmdCtx.Logger)
	if err != nil {
		return err
	}
	store, cleanup, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	compileOpts := cmdCtx.CompilerOptions()
	compileOpts.Tables = tables

	var isDir bool
	if arg != "-" {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		isDir = info.IsDir()
		if !isDir {
			compileOpts.BaseDir = filepath.Dir(arg)
		}
	}
	if opts.Watch && !isDir {
		return fmt.Errorf("--watch needs a directory")
	}

	eng := engine.New(engine.Config{
		Compiler: compileOpts,
		Solve:    cmdCtx.SolveOptions(),
		Store:    store,
		Workers:  opts.Workers,
		Logger:   cmdCtx.Logger,
	})

	var batch *engine.BatchResult
	if isDir {
		batch, err = eng.ProcessDir(ctx, arg, engine.Options{Solve: opts.Solve, Pattern: opts.Pattern})
	} else {
		var text string
		if text, err = readText(cmd, arg); err != nil {
			return err
		}
		batch, err = eng.ProcessText(ctx, text, opts.Solve)
	}
	if err != nil {
		return err
	}
	if err := r.Batch(batch); err != nil {
		return err
	}

	if opts.Watch {
		r.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", arg))
		return eng.Watch(ctx, arg, engine.Options{Solve: opts.Solve, Pattern: opts.Pattern}, func(b *engine.BatchResult) {
			r.Println()
			_ = r.Batch(b)
		})
	}

	if batch.Failed() > 0 {
		return fmt.Errorf("%d of %d models failed", batch.Failed(), len(batch.Files))
	}
	return nil
}
