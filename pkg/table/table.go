// Package table provides the small named-column table that model data is
// bound from.
//
// A Table is column-major and immutable: constructors copy their input and
// every accessor returns a copy, so binding can reshape data freely without
// touching the caller's values.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrColumnNotFound is returned when a requested column does not exist.
var ErrColumnNotFound = errors.New("column not found")

// Table is an immutable set of equally long named columns with an optional
// index made of some of those columns.
type Table struct {
	name    string
	columns []string
	data    map[string][]any
	index   []string
	rows    int
}

// New builds a table from row-major data. Every row must have one value per
// column.
func New(name string, columns []string, rows [][]any) (*Table, error) {
	t, err := empty(name, columns)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("table %s: row %d has %d values, expected %d", name, i, len(row), len(columns))
		}
		for j, col := range columns {
			t.data[col] = append(t.data[col], Normalize(row[j]))
		}
	}
	t.rows = len(rows)
	return t, nil
}

// FromColumns builds a table from column-major data. Columns must all have
// the same length.
func FromColumns(name string, columns []string, data map[string][]any) (*Table, error) {
	t, err := empty(name, columns)
	if err != nil {
		return nil, err
	}
	for i, col := range columns {
		values, ok := data[col]
		if !ok {
			return nil, fmt.Errorf("table %s: %w: %s", name, ErrColumnNotFound, col)
		}
		if i == 0 {
			t.rows = len(values)
		} else if len(values) != t.rows {
			return nil, fmt.Errorf("table %s: column %s has %d values, expected %d", name, col, len(values), t.rows)
		}
		for _, v := range values {
			t.data[col] = append(t.data[col], Normalize(v))
		}
	}
	return t, nil
}

// FromRecords builds a table from row maps. Columns are taken in first-seen
// order; missing values are nil.
func FromRecords(name string, records []map[string]any, order []string) (*Table, error) {
	columns := append([]string(nil), order...)
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
	}
	for _, rec := range records {
		for _, c := range sortedKeys(rec) {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return New(name, columns, rows)
}

func empty(name string, columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: no columns", name)
	}
	t := &Table{
		name:    name,
		columns: append([]string(nil), columns...),
		data:    make(map[string][]any, len(columns)),
	}
	for _, col := range columns {
		if _, dup := t.data[col]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %s", name, col)
		}
		t.data[col] = make([]any, 0)
	}
	return t, nil
}

// WithIndex returns a copy of the table indexed by the given columns.
func (t *Table) WithIndex(columns ...string) (*Table, error) {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("table %s: %w: %s", t.name, ErrColumnNotFound, c)
		}
	}
	cp := *t
	cp.index = append([]string(nil), columns...)
	return &cp, nil
}

// WithName returns a copy of the table registered under another name.
func (t *Table) WithName(name string) *Table {
	cp := *t
	cp.name = name
	return &cp
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Index returns the index column names, if any.
func (t *Table) Index() []string {
	return append([]string(nil), t.index...)
}

// HasColumn reports whether the table has a column with exactly this name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.data[name]
	return ok
}

// Lookup finds a column by name, falling back to a case-insensitive match.
func (t *Table) Lookup(name string) (string, bool) {
	if t.HasColumn(name) {
		return name, true
	}
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// Column returns a copy of a column's values.
func (t *Table) Column(name string) ([]any, error) {
	values, ok := t.data[name]
	if !ok {
		return nil, fmt.Errorf("table %s: %w: %s", t.name, ErrColumnNotFound, name)
	}
	return append([]any(nil), values...), nil
}

// Value returns the value at row i of a column.
func (t *Table) Value(column string, i int) (any, bool) {
	values, ok := t.data[column]
	if !ok || i < 0 || i >= t.rows {
		return nil, false
	}
	return values[i], true
}

// Row returns row i as a column-name map.
func (t *Table) Row(i int) map[string]any {
	if i < 0 || i >= t.rows {
		return nil
	}
	row := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		row[c] = t.data[c][i]
	}
	return row
}

// Rows returns the table in row-major order.
func (t *Table) Rows() [][]any {
	out := make([][]any, t.rows)
	for i := range out {
		row := make([]any, len(t.columns))
		for j, c := range t.columns {
			row[j] = t.data[c][i]
		}
		out[i] = row
	}
	return out
}

// Unique returns the distinct non-nil values of a column in first-seen order.
func (t *Table) Unique(column string) ([]any, error) {
	values, ok := t.data[column]
	if !ok {
		return nil, fmt.Errorf("table %s: %w: %s", t.name, ErrColumnNotFound, column)
	}
	return Dedupe(values), nil
}

// String summarizes the table shape.
func (t *Table) String() string {
	return fmt.Sprintf("%s(%d rows: %s)", t.name, t.rows, strings.Join(t.columns, ", "))
}
