// Package engine compiles and solves models in batches: every model file in
// a directory, or every model of a multi-model document. Failures are
// collected per model and never stop the batch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/solver"
)

// Engine runs batches of compiles.
type Engine struct {
	compile compiler.Options
	solve   compiler.SolveOptions
	store   state.Store
	workers int
	logger  *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// Compiler is the template for every compile. BaseDir is replaced by the
	// directory of each processed file.
	Compiler compiler.Options
	// Solve configures solves when a batch asks for them.
	Solve compiler.SolveOptions
	// Store records every processed model (optional)
	Store state.Store
	// Workers bounds parallel compiles; zero means runtime.NumCPU()
	Workers int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a new engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if cfg.Compiler.Logger == nil {
		cfg.Compiler.Logger = logger
	}
	if cfg.Solve.Logger == nil {
		cfg.Solve.Logger = logger
	}
	return &Engine{
		compile: cfg.Compiler,
		solve:   cfg.Solve,
		store:   cfg.Store,
		workers: workers,
		logger:  logger,
	}
}

// Options configures one batch.
type Options struct {
	// Solve solves every model that compiles.
	Solve bool
	// Pattern filters file names with filepath.Match (optional)
	Pattern string
}

// FileResult is the outcome of one model.
type FileResult struct {
	// Path is the file path, or "#n" for the n-th model of a document
	Path     string
	Model    *compiler.CompiledModel
	Result   *solver.Result
	Err      error
	RecordID string
	Duration time.Duration
}

// OK reports whether the model compiled and, if solved, did not fail.
func (r *FileResult) OK() bool {
	if r.Err != nil {
		return false
	}
	if r.Result != nil {
		return r.Result.Status != solver.StatusExecutionError && r.Result.Status != solver.StatusSolverError
	}
	return true
}

// FileError wraps a failure with the model it came from.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// BatchResult aggregates a batch.
type BatchResult struct {
	ID       string
	Files    []*FileResult
	Errors   []error
	Duration time.Duration
}

// Succeeded counts models without errors.
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, f := range b.Files {
		if f.OK() {
			n++
		}
	}
	return n
}

// Failed counts models with errors.
func (b *BatchResult) Failed() int {
	return len(b.Files) - b.Succeeded()
}

// HasErrors returns true if any model failed.
func (b *BatchResult) HasErrors() bool {
	return len(b.Errors) > 0
}

// Err joins every error of the batch, or returns nil.
func (b *BatchResult) Err() error {
	return errors.Join(b.Errors...)
}

// Summary returns a human-readable summary.
func (b *BatchResult) Summary() string {
	return fmt.Sprintf("Models: %d total (%d ok, %d failed) | Duration: %s",
		len(b.Files), b.Succeeded(), b.Failed(), b.Duration.Round(time.Millisecond))
}

type job struct {
	path    string
	source  string
	baseDir string
	readErr error
}

// ProcessFile compiles (and optionally solves) one model file.
func (e *Engine) ProcessFile(ctx context.Context, path string, solve bool) *FileResult {
	source, err := os.ReadFile(path)
	j := job{path: path, source: string(source), baseDir: filepath.Dir(path)}
	if err != nil {
		j.readErr = fmt.Errorf("failed to read model: %w", err)
	}
	return e.run(ctx, j, solve)
}

// ProcessDir processes every model file under dir. The returned error is
// reserved for failures to list the directory or cancellation; model
// failures are collected in the BatchResult.
func (e *Engine) ProcessDir(ctx context.Context, dir string, opts Options) (*BatchResult, error) {
	paths, err := Discover(dir, opts.Pattern)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("processing directory", slog.String("dir", dir), slog.Int("models", len(paths)))
	return e.ProcessFiles(ctx, paths, opts.Solve)
}

// ProcessFiles processes the given model files in parallel.
func (e *Engine) ProcessFiles(ctx context.Context, paths []string, solve bool) (*BatchResult, error) {
	jobs := make([]job, len(paths))
	for i, path := range paths {
		jobs[i] = job{path: path, baseDir: filepath.Dir(path)}
		data, err := os.ReadFile(path)
		if err != nil {
			jobs[i].readErr = fmt.Errorf("failed to read model: %w", err)
			continue
		}
		jobs[i].source = string(data)
	}
	return e.batch(ctx, jobs, solve)
}

// ProcessText splits a document on lines consisting of "---" and processes
// each non-empty part as its own model.
func (e *Engine) ProcessText(ctx context.Context, text string, solve bool) (*BatchResult, error) {
	var jobs []job
	for i, part := range SplitModels(text) {
		jobs = append(jobs, job{path: fmt.Sprintf("#%d", i+1), source: part, baseDir: e.compile.BaseDir})
	}
	return e.batch(ctx, jobs, solve)
}

// SplitModels splits text on "---" separator lines, dropping blank parts.
func SplitModels(text string) []string {
	var parts []string
	var cur strings.Builder
	flush := func() {
		if s := cur.String(); strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
		cur.Reset()
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}

func (e *Engine) batch(ctx context.Context, jobs []job, solve bool) (*BatchResult, error) {
	start := time.Now()
	batch := &BatchResult{ID: uuid.New().String(), Files: make([]*FileResult, len(jobs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch.Files[i] = e.run(gctx, j, solve)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, f := range batch.Files {
		switch {
		case f.Err != nil:
			batch.Errors = append(batch.Errors, &FileError{Path: f.Path, Err: f.Err})
		case !f.OK():
			batch.Errors = append(batch.Errors, &FileError{Path: f.Path, Err: errors.New(f.Result.Message)})
		}
	}
	batch.Duration = time.Since(start)

	e.logger.Info("batch finished",
		slog.String("batch_id", batch.ID),
		slog.Int("models", len(batch.Files)),
		slog.Int("failed", batch.Failed()),
		slog.Duration("duration", batch.Duration))
	return batch, nil
}

// run compiles one model with its own compiler options, so no state is
// shared between models of a batch.
func (e *Engine) run(ctx context.Context, j job, solve bool) *FileResult {
	start := time.Now()
	res := &FileResult{Path: j.path}
	defer func() { res.Duration = time.Since(start) }()

	if j.readErr != nil {
		res.Err = j.readErr
		return res
	}

	opts := e.compile
	opts.BaseDir = j.baseDir
	if opts.Name == "" && !strings.HasPrefix(j.path, "#") {
		opts.Name = strings.TrimSuffix(filepath.Base(j.path), filepath.Ext(j.path))
	}

	res.Model, res.Err = compiler.Compile(ctx, j.source, opts)
	if res.Err == nil && solve {
		res.Result = res.Model.Solve(ctx, e.solve)
	}

	if res.Err != nil {
		e.logger.Warn("model failed", slog.String("path", j.path), slog.String("error", res.Err.Error()))
	} else {
		e.logger.Debug("model compiled", slog.String("path", j.path))
	}

	e.record(ctx, j, res)
	return res
}

func (e *Engine) record(ctx context.Context, j job, res *FileResult) {
	if e.store == nil {
		return
	}
	rec := state.NewRecord(j.path, j.source)
	rec.SetCompiled(res.Model, res.Err)
	rec.SetResult(res.Result)
	if err := e.store.Save(ctx, rec); err != nil {
		e.logger.Warn("failed to record history", slog.String("path", j.path), slog.String("error", err.Error()))
		return
	}
	res.RecordID = rec.ID
}
