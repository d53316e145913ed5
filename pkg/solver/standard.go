package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	feasTol     = 1e-9
	simplexTol  = 1e-10
	integralTol = 1e-6
)

// relaxation is a problem prepared for repeated LP solves under changing
// variable bounds: objective in minimization form, constraints as dense rows
// over the problem's variables.
type relaxation struct {
	vars     []*Variable
	cost     []float64
	constant float64
	rows     [][]float64
	rels     []Relation
	rhs      []float64
}

func newRelaxation(p *Problem) *relaxation {
	r := &relaxation{vars: p.Variables()}
	index := make(map[*Variable]int, len(r.vars))
	for i, v := range r.vars {
		index[v] = i
	}

	sign := 1.0
	if p.Sense == Maximize {
		sign = -1
	}
	r.cost = make([]float64, len(r.vars))
	for _, t := range p.Objective.Terms() {
		r.cost[index[t.Var]] = sign * t.Coef
	}
	r.constant = sign * p.Objective.Constant

	for _, c := range p.Constraints {
		row := make([]float64, len(r.vars))
		for _, t := range c.Expr.Terms() {
			row[index[t.Var]] = t.Coef
		}
		r.rows = append(r.rows, row)
		r.rels = append(r.rels, c.Relation)
		r.rhs = append(r.rhs, -c.Expr.Constant)
	}
	return r
}

func (r *relaxation) bounds() (lower, upper []float64) {
	lower = make([]float64, len(r.vars))
	upper = make([]float64, len(r.vars))
	for i, v := range r.vars {
		lower[i], upper[i] = v.Lower, v.Upper
		if v.Category.IsIntegral() {
			lower[i] = math.Ceil(lower[i] - integralTol)
			upper[i] = math.Floor(upper[i] + integralTol)
		}
	}
	return lower, upper
}

// fractional returns the first integral variable with a fractional value,
// or -1.
func (r *relaxation) fractional(x []float64) int {
	for i, v := range r.vars {
		if v.Category.IsIntegral() && math.Abs(x[i]-math.Round(x[i])) > integralTol {
			return i
		}
	}
	return -1
}

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

type lpResult struct {
	status lpStatus
	obj    float64 // minimization form, constant included
	x      []float64
}

// column maps a problem variable onto standard-form columns:
// value = offset + x[plus] - x[minus], where -1 means no column.
type column struct {
	offset      float64
	plus, minus int
}

// solve solves the LP relaxation under the given bounds. The standard form
// is min c'x subject to Ax = b, x >= 0: finite lower bounds are shifted to
// zero, upper-only variables are mirrored, free variables are split and
// inequalities get slack columns.
func (r *relaxation) solve(lower, upper []float64) (*lpResult, error) {
	cols := make([]column, len(r.vars))
	n := 0
	newCol := func() int { n++; return n - 1 }
	type boundRow struct {
		col   int
		width float64
	}
	var boundRows []boundRow

	for j := range r.vars {
		lo, up := lower[j], upper[j]
		switch {
		case lo > up+feasTol:
			return &lpResult{status: lpInfeasible}, nil
		case !math.IsInf(lo, -1) && up-lo <= feasTol:
			cols[j] = column{offset: lo, plus: -1, minus: -1}
		case !math.IsInf(lo, -1):
			cols[j] = column{offset: lo, plus: newCol(), minus: -1}
			if !math.IsInf(up, 1) {
				boundRows = append(boundRows, boundRow{cols[j].plus, up - lo})
			}
		case !math.IsInf(up, 1):
			cols[j] = column{offset: up, plus: -1, minus: newCol()}
		default:
			cols[j] = column{plus: newCol(), minus: newCol()}
		}
	}

	// Rows over structural columns, before slacks.
	type stdRow struct {
		coefs []float64
		rel   Relation
		rhs   float64
	}
	var rows []stdRow
	for i, row := range r.rows {
		coefs := make([]float64, n)
		rhs := r.rhs[i]
		nonzero := false
		for j, a := range row {
			if a == 0 {
				continue
			}
			c := cols[j]
			rhs -= a * c.offset
			if c.plus >= 0 {
				coefs[c.plus] += a
				nonzero = true
			}
			if c.minus >= 0 {
				coefs[c.minus] -= a
				nonzero = true
			}
		}
		if !nonzero {
			if !constantHolds(r.rels[i], rhs) {
				return &lpResult{status: lpInfeasible}, nil
			}
			continue
		}
		rows = append(rows, stdRow{coefs, r.rels[i], rhs})
	}
	for _, br := range boundRows {
		coefs := make([]float64, n)
		coefs[br.col] = 1
		rows = append(rows, stdRow{coefs, LE, br.width})
	}

	cost := make([]float64, n)
	constant := r.constant
	for j, c := range cols {
		constant += r.cost[j] * c.offset
		if c.plus >= 0 {
			cost[c.plus] += r.cost[j]
		}
		if c.minus >= 0 {
			cost[c.minus] -= r.cost[j]
		}
	}

	// Columns no row touches sit at zero, unless the objective pushes them
	// to infinity.
	used := make([]bool, n)
	for _, row := range rows {
		for j, a := range row.coefs {
			if a != 0 {
				used[j] = true
			}
		}
	}
	keep := make([]int, 0, n) // reduced column -> standard column
	remap := make([]int, n)   // standard column -> reduced column, -1 if dropped
	for j := 0; j < n; j++ {
		if used[j] {
			remap[j] = len(keep)
			keep = append(keep, j)
			continue
		}
		if cost[j] < -feasTol {
			return &lpResult{status: lpUnbounded}, nil
		}
		remap[j] = -1
	}

	// Equality rows must be linearly independent; inequality rows are kept
	// independent by their slack columns.
	var eqIdx []int
	for i, row := range rows {
		if row.rel == EQ {
			eqIdx = append(eqIdx, i)
		}
	}
	drop := make(map[int]bool)
	if len(eqIdx) > 0 {
		eqRows := make([][]float64, len(eqIdx))
		eqRHS := make([]float64, len(eqIdx))
		for k, i := range eqIdx {
			eqRows[k] = rows[i].coefs
			eqRHS[k] = rows[i].rhs
		}
		dependent, ok := dependentRows(eqRows, eqRHS)
		if !ok {
			return &lpResult{status: lpInfeasible}, nil
		}
		for _, k := range dependent {
			drop[eqIdx[k]] = true
		}
	}

	m := 0
	slacks := 0
	for i, row := range rows {
		if drop[i] {
			continue
		}
		m++
		if row.rel != EQ {
			slacks++
		}
	}

	x := make([]float64, n)
	obj := constant
	if m > 0 {
		width := len(keep) + slacks
		a := mat.NewDense(m, width, nil)
		b := make([]float64, m)
		c := make([]float64, width)
		for k, j := range keep {
			c[k] = cost[j]
		}
		ri, slack := 0, len(keep)
		for i, row := range rows {
			if drop[i] {
				continue
			}
			for j, v := range row.coefs {
				if v != 0 {
					a.Set(ri, remap[j], v)
				}
			}
			switch row.rel {
			case LE:
				a.Set(ri, slack, 1)
				slack++
			case GE:
				a.Set(ri, slack, -1)
				slack++
			}
			b[ri] = row.rhs
			if b[ri] < 0 {
				for j := 0; j < width; j++ {
					a.Set(ri, j, -a.At(ri, j))
				}
				b[ri] = -b[ri]
			}
			ri++
		}

		opt, sol, err := simplex(c, a, b)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return &lpResult{status: lpInfeasible}, nil
		case errors.Is(err, lp.ErrUnbounded):
			return &lpResult{status: lpUnbounded}, nil
		case err != nil:
			return nil, err
		}
		obj += opt
		for k, j := range keep {
			x[j] = sol[k]
		}
	}

	values := make([]float64, len(r.vars))
	for j, c := range cols {
		v := c.offset
		if c.plus >= 0 {
			v += x[c.plus]
		}
		if c.minus >= 0 {
			v -= x[c.minus]
		}
		values[j] = v
	}
	return &lpResult{status: lpOptimal, obj: obj, x: values}, nil
}

// simplex calls gonum's solver, turning its panics on malformed input into
// errors.
func simplex(c []float64, a mat.Matrix, b []float64) (opt float64, x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex: %v", r)
		}
	}()
	return lp.Simplex(c, a, b, simplexTol, nil)
}

func constantHolds(rel Relation, rhs float64) bool {
	switch rel {
	case LE:
		return rhs >= -feasTol
	case GE:
		return rhs <= feasTol
	}
	return math.Abs(rhs) <= feasTol
}

// dependentRows finds the rows that are linear combinations of earlier
// rows. ok is false when such a row contradicts them.
func dependentRows(rows [][]float64, rhs []float64) (dependent []int, ok bool) {
	type pivotRow struct {
		coefs []float64
		rhs   float64
		pivot int
	}
	var basis []pivotRow
	for i, row := range rows {
		r := append([]float64(nil), row...)
		v := rhs[i]
		for _, p := range basis {
			f := r[p.pivot]
			if f == 0 {
				continue
			}
			for j := range r {
				r[j] -= f * p.coefs[j]
			}
			v -= f * p.rhs
		}
		pivot, maxAbs := -1, 0.0
		for j, a := range r {
			if math.Abs(a) > maxAbs {
				pivot, maxAbs = j, math.Abs(a)
			}
		}
		if maxAbs <= feasTol {
			if math.Abs(v) > 1e-7 {
				return nil, false
			}
			dependent = append(dependent, i)
			continue
		}
		scale := r[pivot]
		for j := range r {
			r[j] /= scale
		}
		basis = append(basis, pivotRow{coefs: r, rhs: v / scale, pivot: pivot})
	}
	return dependent, true
}
