// Package binding resolves a model's sets and parameters against external
// tabular data.
//
// Binding runs in two phases. Input assembly loads the tables named by
// import statements and overlays the caller's inputs on top of them.
// Resolution then binds every set (sets first, because parameters are
// densified over them) and every parameter into a flat value map:
//
//   - a set binds to an ordered []any of distinct elements;
//   - a scalar parameter binds to a number;
//   - a parameter with n indices binds to n levels of map[any]any, so the
//     generated program can index it as value[a][b].
//
// Names that cannot be resolved are reported as Warnings and left unbound;
// the generated program then falls back to the literal default in the model.
// Parameter data that matches no element of its index sets is never used:
// a table found by column name is skipped in favour of the next one, and an
// input registered under the parameter's own name fails the whole Bind.
// Binding never modifies the caller's inputs.
package binding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/table"
)

// Loader reads a tabular file referenced by an import statement.
type Loader interface {
	Load(ctx context.Context, path string) (*table.Table, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string) (*table.Table, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, path string) (*table.Table, error) {
	return f(ctx, path)
}

// Options configures a Binder.
type Options struct {
	// Loader reads imported files. Without a loader, imports are skipped
	// with a warning.
	Loader Loader
	// BaseDir resolves relative import paths, normally the directory of the
	// model file.
	BaseDir string
	// Strict turns unresolved names and non-overlapping parameter data into
	// errors.
	Strict bool
	Logger *slog.Logger
}

// Result holds the outcome of one Bind call.
type Result struct {
	// Values maps set and parameter names to their bound values.
	Values map[string]any
	// Imports holds the tables loaded from import statements.
	Imports map[string]*table.Table
	// Tables holds every tabular input by name: imports overlaid with the
	// caller's tables.
	Tables   map[string]*table.Table
	Warnings []Warning
}

// Binder binds models to data.
type Binder struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Binder.
func New(opts Options) *Binder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Binder{opts: opts, logger: logger}
}

// Bind resolves the sets and parameters of model. Input values may be
// *table.Table, slices (literal sequences), maps (nested parameter
// mappings) or scalars.
func (b *Binder) Bind(ctx context.Context, model *ast.Model, input map[string]any) (*Result, error) {
	start := time.Now()
	run := &binding{
		Binder:  b,
		values:  make(map[string]any),
		sources: make(map[string]*source),
		result: &Result{
			Values:  make(map[string]any),
			Imports: make(map[string]*table.Table),
			Tables:  make(map[string]*table.Table),
		},
	}

	if err := run.assemble(ctx, model, input); err != nil {
		return nil, err
	}
	for _, set := range model.Sets() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.bindSet(set)
	}
	for _, name := range ast.Scan(model).ImplicitSets {
		run.bindImplicitSet(name)
	}
	for _, param := range model.Params() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.bindParam(param)
	}

	if len(run.fatal) > 0 {
		return nil, errors.Join(run.fatal...)
	}
	if b.opts.Strict && len(run.errs) > 0 {
		return nil, errors.Join(run.errs...)
	}
	for name, v := range run.values {
		run.result.Values[name] = v
	}
	b.logger.Debug("binding complete",
		slog.Int("values", len(run.result.Values)),
		slog.Int("warnings", len(run.result.Warnings)),
		slog.Duration("elapsed", time.Since(start)))
	return run.result, nil
}

// binding is the state of one Bind call.
type binding struct {
	*Binder
	sources map[string]*source
	order   []*source // imports in source order, then caller inputs by name
	values  map[string]any
	result  *Result
	errs    []error
	// fatal errors abort Bind even when the binder is not strict.
	fatal []error
}

func (r *binding) warn(name, format string, args ...any) {
	w := Warning{Name: name, Message: fmt.Sprintf(format, args...)}
	r.logger.Warn("binding warning", slog.String("name", name), slog.String("message", w.Message))
	r.result.Warnings = append(r.result.Warnings, w)
}

// fail records an Error. It is a warning unless the binder is strict.
func (r *binding) fail(err *Error) {
	r.errs = append(r.errs, err)
	if err.Err != nil {
		r.warn(err.Name, "%s: %v", err.Message, err.Err)
		return
	}
	r.warn(err.Name, "%s", err.Message)
}

func (r *binding) abort(err *Error) {
	r.logger.Error("binding failed", slog.String("name", err.Name), slog.String("error", err.Error()))
	r.fatal = append(r.fatal, err)
}

// assemble builds the input-source map: imports first, overridden by the
// caller's inputs.
func (r *binding) assemble(ctx context.Context, model *ast.Model, input map[string]any) error {
	for _, imp := range model.Imports() {
		name := imp.TableName()
		if r.opts.Loader == nil {
			r.fail(&Error{Name: name, Message: fmt.Sprintf("cannot import %q: no table loader configured", imp.Path)})
			continue
		}
		path := imp.Path
		if !filepath.IsAbs(path) && r.opts.BaseDir != "" {
			path = filepath.Join(r.opts.BaseDir, path)
		}
		tbl, err := r.opts.Loader.Load(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.fail(&Error{Name: name, Message: fmt.Sprintf("cannot import %q", imp.Path), Err: err})
			continue
		}
		tbl = tbl.WithName(name)
		r.result.Imports[name] = tbl
		r.add(&source{name: name, table: tbl})
		r.logger.Debug("imported table",
			slog.String("name", name),
			slog.String("path", path),
			slog.Int("rows", tbl.Len()))
	}

	names := make([]string, 0, len(input))
	for name := range input {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src, err := newSource(name, input[name])
		if err != nil {
			r.warn(name, "ignoring input: %v", err)
			continue
		}
		if src.table != nil {
			src.table = src.table.WithName(name)
		}
		r.add(src)
	}

	for _, src := range r.order {
		if src.table != nil {
			r.result.Tables[src.name] = src.table
		}
	}
	return nil
}

func (r *binding) add(src *source) {
	if prev, ok := r.sources[src.name]; ok {
		for i, s := range r.order {
			if s == prev {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.sources[src.name] = src
	r.order = append(r.order, src)
}

// candidate is a table with a column named like a set or parameter.
type candidate struct {
	table  *table.Table
	column string
}

// scan returns, in input order, every table other than the one registered
// under name that has a column called name.
func (r *binding) scan(name string) []candidate {
	var found []candidate
	for _, src := range r.order {
		if src.table == nil || src.name == name {
			continue
		}
		if col, ok := src.table.Lookup(name); ok {
			found = append(found, candidate{table: src.table, column: col})
		}
	}
	return found
}
