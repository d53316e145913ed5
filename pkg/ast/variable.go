package ast

import (
	"sort"
	"strings"
)

// Variable is a decision variable discovered in a model. Identity is the
// pair (Name, Indices).
type Variable struct {
	Name    string
	Indices []string
	Domain  Domain
	// Declared is false for names used without a var declaration.
	Declared bool
}

// Key returns the identity of the variable, e.g. "x[P,L]".
func (v Variable) Key() string {
	if len(v.Indices) == 0 {
		return v.Name
	}
	return v.Name + "[" + strings.Join(v.Indices, ",") + "]"
}

// String implements fmt.Stringer.
func (v Variable) String() string {
	return v.Key()
}

// IsIndexed reports whether the variable has index placeholders.
func (v Variable) IsIndexed() bool {
	return len(v.Indices) > 0
}

// DatasetRef identifies a column of an external table.
type DatasetRef struct {
	Table  string
	Column string
}

// String implements fmt.Stringer.
func (d DatasetRef) String() string {
	return d.Table + "." + d.Column
}

func sortVariables(vars []Variable) {
	sort.Slice(vars, func(i, j int) bool {
		if vars[i].Name != vars[j].Name {
			return vars[i].Name < vars[j].Name
		}
		return vars[i].Key() < vars[j].Key()
	})
}

func sortDatasets(refs []DatasetRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Table != refs[j].Table {
			return refs[i].Table < refs[j].Table
		}
		return refs[i].Column < refs[j].Column
	})
}
