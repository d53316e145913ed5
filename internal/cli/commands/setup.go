package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapopt/internal/adapter"
	"github.com/leapstack-labs/leapopt/internal/cli/config"
	"github.com/leapstack-labs/leapopt/internal/cli/output"
	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))
	return &CommandContext{Cfg: cfg, Logger: logger, Renderer: r}
}

// getConfig returns the current configuration, or the defaults when the
// command runs without the root command (tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// OpenStore opens the history database. It returns a nil store when history
// is disabled. The cleanup function is never nil.
func (c *CommandContext) OpenStore() (state.Store, func(), error) {
	if !c.Cfg.History || c.Cfg.StatePath == "" {
		return nil, func() {}, nil
	}
	store, err := state.Open(c.Cfg.StatePath)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open history: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// requireStore is OpenStore for commands that cannot work without history.
func (c *CommandContext) requireStore() (state.Store, func(), error) {
	if c.Cfg.StatePath == "" {
		return nil, nil, fmt.Errorf("no history database configured\nHint: Set state_path in leapopt.yaml")
	}
	store, err := state.Open(c.Cfg.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// SolveOptions returns the configured solve defaults.
func (c *CommandContext) SolveOptions() compiler.SolveOptions {
	return compiler.SolveOptions{
		Backend:   c.Cfg.Solver.Backend,
		TimeLimit: c.Cfg.Solver.TimeLimit,
		MaxNodes:  c.Cfg.Solver.MaxNodes,
		Verbose:   c.Cfg.Solver.Verbose,
		Logger:    c.Logger,
	}
}

// CompilerOptions returns the base compiler options, without inputs.
func (c *CommandContext) CompilerOptions() compiler.Options {
	return compiler.Options{
		BaseDir: c.Cfg.DataDir,
		Loader:  adapter.NewFileLoader(c.Logger),
		Strict:  c.Cfg.Binding.Strict,
		Logger:  c.Logger,
	}
}

// modelInput is a model read from a command argument.
type modelInput struct {
	Source string
	// Path is empty for inline text.
	Path string
}

// Name is the model name used for history and problem names.
func (m modelInput) Name() string {
	if m.Path == "" {
		return ""
	}
	base := filepath.Base(m.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func readModel(arg string) (modelInput, error) {
	source, path, err := compiler.ResolveSource(arg)
	if err != nil {
		return modelInput{}, err
	}
	return modelInput{Source: source, Path: path}, nil
}

// Compile compiles a model with the inputs from --data files and the
// configured sources it references.
func (c *CommandContext) Compile(ctx context.Context, in modelInput, dataFiles []string) (*compiler.CompiledModel, error) {
	opts := c.CompilerOptions()
	opts.Name = in.Name()
	if in.Path != "" {
		opts.BaseDir = filepath.Dir(in.Path)
	}

	tables, err := c.loadInputs(ctx, in.Source, dataFiles)
	if err != nil {
		return nil, err
	}
	opts.Tables = tables
	return compiler.Compile(ctx, in.Source, opts)
}

// loadInputs reads --data files and referenced sources. Data files win
// over sources of the same name.
func (c *CommandContext) loadInputs(ctx context.Context, source string, dataFiles []string) (map[string]any, error) {
	inputs, err := loadDataFiles(ctx, dataFiles, c.Logger)
	if err != nil {
		return nil, err
	}

	sources := referencedSources(source, c.Cfg.Sources)
	for name := range inputs {
		delete(sources, name)
	}
	if len(sources) == 0 {
		return inputs, nil
	}
	loaded, err := adapter.LoadSources(ctx, sources, c.Logger)
	if err != nil {
		return nil, err
	}
	for name, v := range loaded {
		inputs[name] = v
	}
	return inputs, nil
}

// loadDataFiles reads --data arguments. YAML and JSON documents contribute
// their top-level keys; tabular files become a table named after the file.
func loadDataFiles(ctx context.Context, files []string, logger *slog.Logger) (map[string]any, error) {
	inputs := make(map[string]any)
	loader := adapter.NewFileLoader(logger)
	for _, path := range files {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			doc, err := adapter.ReadDocument(path)
			if err != nil {
				return nil, err
			}
			for k, v := range doc {
				inputs[k] = v
			}
		default:
			tbl, err := loader.Load(ctx, path)
			if err != nil {
				return nil, err
			}
			inputs[tbl.Name()] = tbl
		}
		logger.Debug("loaded data file", slog.String("path", path))
	}
	return inputs, nil
}

// referencedSources selects the configured sources a model can bind:
// imported or dataset tables, sets and parameters named like the source.
func referencedSources(source string, sources map[string]adapter.Config) map[string]adapter.Config {
	selected := make(map[string]adapter.Config)
	if len(sources) == 0 {
		return selected
	}
	res, err := ast.Parse(source)
	if err != nil {
		return selected
	}

	names := make(map[string]bool)
	for _, d := range res.Datasets {
		names[d.Table] = true
	}
	for _, stmt := range res.Model.Statements {
		switch n := stmt.(type) {
		case *ast.SetDecl:
			names[n.Name] = true
		case *ast.ParamDecl:
			names[n.Name] = true
		}
	}
	for _, name := range ast.Scan(res.Model).ImplicitSets {
		names[name] = true
	}

	for name, cfg := range sources {
		if names[name] {
			selected[name] = cfg
		}
	}
	return selected
}

// readText reads a file argument or standard input for "-".
func readText(cmd *cobra.Command, arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return string(data), nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
