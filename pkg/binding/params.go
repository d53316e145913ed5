package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/table"
)

// valueColumnNames are the conventional names of a parameter's value column.
var valueColumnNames = []string{"value", "valor", "val"}

// Sparse is parameter data keyed by index tuples, in first-seen order.
type Sparse struct {
	keys   [][]any
	values map[string]any
}

// NewSparse returns empty parameter data.
func NewSparse() *Sparse {
	return &Sparse{values: make(map[string]any)}
}

func tupleKey(keys []any) string {
	return fmt.Sprintf("%#v", keys)
}

// Set stores a value and reports whether the key was already present.
func (s *Sparse) Set(keys []any, v any) bool {
	k := tupleKey(keys)
	_, dup := s.values[k]
	if !dup {
		s.keys = append(s.keys, append([]any(nil), keys...))
	}
	s.values[k] = v
	return dup
}

// Get returns the value stored under an index tuple.
func (s *Sparse) Get(keys []any) (any, bool) {
	v, ok := s.values[tupleKey(keys)]
	return v, ok
}

// Len returns the number of entries.
func (s *Sparse) Len() int {
	return len(s.keys)
}

// Nest builds a nested mapping with one level per index.
func (s *Sparse) Nest() map[any]any {
	root := make(map[any]any)
	for _, keys := range s.keys {
		v, _ := s.Get(keys)
		level := root
		for i, k := range keys {
			if i == len(keys)-1 {
				level[k] = v
				break
			}
			next, ok := level[k].(map[any]any)
			if !ok {
				next = make(map[any]any)
				level[k] = next
			}
			level = next
		}
	}
	return root
}

// Densify builds the full cross product of sets, one nesting level per
// index, filling gaps with def. It also reports how many entries of data
// matched the target index; zero means the data belongs to something else.
func Densify(sets [][]any, data *Sparse, def any) (map[any]any, int) {
	if len(sets) == 0 {
		return map[any]any{}, 0
	}
	hits := 0
	var build func(level int, prefix []any) map[any]any
	build = func(level int, prefix []any) map[any]any {
		out := make(map[any]any, len(sets[level]))
		for _, elem := range sets[level] {
			keys := append(append([]any(nil), prefix...), elem)
			if level+1 < len(sets) {
				out[elem] = build(level+1, keys)
				continue
			}
			if v, ok := data.Get(keys); ok {
				out[elem] = v
				hits++
			} else {
				out[elem] = def
			}
		}
		return out
	}
	return build(0, nil), hits
}

// Overlaps reports whether a Densify result with the given hit count used
// the source data. An empty cross product has nothing to match and always
// overlaps.
func Overlaps(sets [][]any, hits int) bool {
	if hits > 0 {
		return true
	}
	for _, elems := range sets {
		if len(elems) == 0 {
			return true
		}
	}
	return false
}

// Extraction is parameter data read from a table.
type Extraction struct {
	Data         *Sparse // indexed parameters
	Scalar       any     // parameters without indices
	IndexColumns []string
	ValueColumn  string
	Duplicates   int
	// Guessed is set when the value column was picked without a naming
	// match.
	Guessed bool
}

// Origin describes where the data came from, e.g. "custos(Products -> Cost)".
func (e *Extraction) Origin(tbl *table.Table) string {
	return fmt.Sprintf("%s(%s -> %s)", tbl.Name(), strings.Join(e.IndexColumns, ", "), e.ValueColumn)
}

// FromTable extracts a parameter with the given index names from a table.
//
// Index columns are the declared index names found in the table; valueCol
// is used when set, otherwise the value column is the sole remaining column,
// one named after the parameter, a conventional value name, or the first
// remaining column. Index names missing from the table are then filled
// positionally from the columns left over, table index columns first.
func FromTable(tbl *table.Table, name string, indices []string, valueCol string) (*Extraction, error) {
	ex := &Extraction{IndexColumns: make([]string, len(indices))}
	used := make(map[string]bool)
	for i, idx := range indices {
		if col, ok := tbl.Lookup(idx); ok && col != valueCol && !used[col] {
			ex.IndexColumns[i] = col
			used[col] = true
		}
	}

	if valueCol == "" {
		valueCol, ex.Guessed = valueColumn(name, tbl, used)
		if valueCol == "" {
			return nil, fmt.Errorf("table %s has no value column", tbl.Name())
		}
	}
	ex.ValueColumn = valueCol
	used[valueCol] = true

	remaining := make([]string, 0, len(tbl.Columns()))
	for _, c := range append(tbl.Index(), tbl.Columns()...) {
		if !used[c] {
			used[c] = true
			remaining = append(remaining, c)
		}
	}
	for i := range ex.IndexColumns {
		if ex.IndexColumns[i] != "" {
			continue
		}
		if len(remaining) == 0 {
			return nil, fmt.Errorf("table %s has no column for index %s", tbl.Name(), indices[i])
		}
		ex.IndexColumns[i], remaining = remaining[0], remaining[1:]
	}

	if len(indices) == 0 {
		values, _ := tbl.Column(valueCol)
		values = table.Dedupe(values)
		if len(values) != 1 {
			return nil, fmt.Errorf("scalar parameter needs one value, column %s.%s has %d", tbl.Name(), valueCol, len(values))
		}
		v, ok := numericValue(values[0])
		if !ok {
			return nil, fmt.Errorf("scalar parameter needs a number, got %v", values[0])
		}
		ex.Scalar = v
		return ex, nil
	}

	ex.Data = NewSparse()
	for i := 0; i < tbl.Len(); i++ {
		raw, _ := tbl.Value(valueCol, i)
		if raw == nil {
			continue
		}
		v, ok := numericValue(raw)
		if !ok {
			return nil, fmt.Errorf("column %s.%s has non-numeric value %v", tbl.Name(), valueCol, raw)
		}
		keys := make([]any, len(ex.IndexColumns))
		missing := false
		for j, c := range ex.IndexColumns {
			keys[j], _ = tbl.Value(c, i)
			missing = missing || keys[j] == nil
		}
		if missing {
			continue
		}
		if ex.Data.Set(keys, v) {
			ex.Duplicates++
		}
	}
	return ex, nil
}

func valueColumn(name string, tbl *table.Table, indexCols map[string]bool) (string, bool) {
	var candidates []string
	for _, c := range tbl.Columns() {
		if !indexCols[c] {
			candidates = append(candidates, c)
		}
	}
	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0], false
	}
	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return c, false
		}
	}
	for _, conventional := range valueColumnNames {
		for _, c := range candidates {
			if strings.EqualFold(c, conventional) {
				return c, false
			}
		}
	}
	return candidates[0], true
}

// FromMapping flattens a nested mapping of the given depth into sparse data.
func FromMapping(m map[any]any, depth int) (*Sparse, error) {
	out := NewSparse()
	if err := flatten(m, nil, depth, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(m map[any]any, prefix []any, depth int, out *Sparse) error {
	for _, k := range sortedKeys(m) {
		keys := append(append([]any(nil), prefix...), k)
		v := m[k]
		if depth > 1 {
			inner, ok := v.(map[any]any)
			if !ok {
				return fmt.Errorf("value at %v is not a mapping; expected %d index levels", keys, len(keys)+depth-1)
			}
			if err := flatten(inner, keys, depth-1, out); err != nil {
				return err
			}
			continue
		}
		num, ok := numericValue(v)
		if !ok {
			return fmt.Errorf("value at %v is not a number: %v", keys, v)
		}
		out.Set(keys, num)
	}
	return nil
}

// ---------- resolution ----------

func (r *binding) bindParam(decl *ast.ParamDecl) {
	reported := false
	if src, ok := r.sources[decl.Name]; ok {
		err := r.paramFromSource(decl, src)
		if err == nil {
			return
		}
		if errors.Is(err, ErrNoOverlap) {
			r.abort(err)
			return
		}
		r.fail(err)
		reported = true
	}

	var skipped []string
	for _, c := range r.scan(decl.Name) {
		err := r.paramFromTable(decl, c.table, c.column)
		if err == nil {
			return
		}
		r.logger.Debug("skipping table for parameter",
			slog.String("name", decl.Name),
			slog.String("table", c.table.Name()),
			slog.String("reason", err.Message))
		skipped = append(skipped, err.Message)
	}
	if len(skipped) > 0 && !reported {
		r.fail(&Error{Name: decl.Name, Message: "no table with a matching column fits: " + strings.Join(skipped, "; ")})
		reported = true
	}

	if decl.Default != nil {
		if len(decl.Indices) == 0 {
			r.values[decl.Name] = LiteralValue(decl.Default)
		}
		// Indexed parameters with a default are filled by the program.
		return
	}
	if !reported {
		r.fail(&Error{Name: decl.Name, Message: "parameter is not bound and has no default"})
	}
}

// paramFromSource binds a parameter from the input registered under its own
// name, validating the shape against the declared index arity.
func (r *binding) paramFromSource(decl *ast.ParamDecl, src *source) *Error {
	arity := len(decl.Indices)
	switch {
	case src.table != nil:
		return r.paramFromTable(decl, src.table, "")
	case arity == 0 && src.mapping == nil && src.seq == nil:
		v, ok := numericValue(src.scalar)
		if !ok {
			return &Error{Name: decl.Name, Message: fmt.Sprintf("scalar parameter needs a number, got %v", src.scalar)}
		}
		r.values[decl.Name] = v
		return nil
	case arity > 0 && src.mapping != nil:
		data, err := FromMapping(src.mapping, arity)
		if err != nil {
			return &Error{Name: decl.Name, Message: "invalid mapping", Err: err}
		}
		return r.finishParam(decl, data, "input")
	}
	return &Error{Name: decl.Name, Message: fmt.Sprintf("parameter with %d indices cannot be bound from a %s", arity, src.kind())}
}

// paramFromTable binds a parameter from one table. Nothing is stored when
// it returns an error.
func (r *binding) paramFromTable(decl *ast.ParamDecl, tbl *table.Table, valueCol string) *Error {
	ex, err := FromTable(tbl, decl.Name, decl.Indices, valueCol)
	if err != nil {
		return &Error{Name: decl.Name, Message: "cannot read table " + tbl.Name(), Err: err}
	}
	if len(decl.Indices) == 0 {
		r.values[decl.Name] = ex.Scalar
	} else if err := r.finishParam(decl, ex.Data, ex.Origin(tbl)); err != nil {
		return err
	}
	if ex.Guessed {
		r.warn(decl.Name, "no obvious value column in table %s; using %s", tbl.Name(), ex.ValueColumn)
	}
	if ex.Duplicates > 0 {
		r.warn(decl.Name, "%d duplicate index entries in table %s; later rows win", ex.Duplicates, tbl.Name())
	}
	return nil
}

// finishParam densifies sparse data over the declared index sets when they
// are all resolved, and stores the nested mapping. Data that matches no
// index element is rejected with ErrNoOverlap.
func (r *binding) finishParam(decl *ast.ParamDecl, data *Sparse, origin string) *Error {
	sets := make([][]any, len(decl.Indices))
	for i, idx := range decl.Indices {
		elems, ok := r.values[idx].([]any)
		if !ok {
			r.values[decl.Name] = data.Nest()
			r.logger.Debug("binding parameter",
				slog.String("name", decl.Name),
				slog.String("origin", origin),
				slog.Int("entries", data.Len()))
			return nil
		}
		sets[i] = elems
	}

	nested, hits := Densify(sets, data, defaultValue(decl))
	if !Overlaps(sets, hits) {
		return &Error{
			Name:    decl.Name,
			Message: fmt.Sprintf("data from %s does not match any element of its index sets %s", origin, strings.Join(decl.Indices, ", ")),
			Err:     ErrNoOverlap,
		}
	}
	r.values[decl.Name] = nested
	r.logger.Debug("densified parameter",
		slog.String("name", decl.Name),
		slog.String("origin", origin),
		slog.Int("entries", data.Len()),
		slog.Int("matched", hits))
	return nil
}

func defaultValue(decl *ast.ParamDecl) any {
	if v, ok := numericValue(LiteralValue(decl.Default)); ok {
		return v
	}
	return int64(0)
}

// numericValue normalizes a number, parsing numeric strings.
func numericValue(v any) (any, bool) {
	v = table.Normalize(v)
	if table.IsNumeric(v) {
		return v, true
	}
	if s, ok := v.(string); ok {
		if f, ok := table.ToFloat(s); ok {
			return table.Normalize(f), true
		}
	}
	return nil, false
}
