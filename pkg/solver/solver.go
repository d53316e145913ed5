// Package solver holds the in-memory optimization problem built by generated
// programs, the backends that solve it and the structured Result.
package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
)

// Status is the outcome of a solve.
type Status string

// Result statuses.
const (
	StatusOptimal        Status = "Optimal"
	StatusInfeasible     Status = "Infeasible"
	StatusUnbounded      Status = "Unbounded"
	StatusExecutionError Status = "ExecutionError"
	StatusSolverError    Status = "SolverError"
	StatusUnknown        Status = "Unknown"
)

// nonZeroTol is the magnitude below which a value counts as zero.
const nonZeroTol = 1e-8

// Options configures a solve.
type Options struct {
	// TimeLimit bounds the solve; zero means no limit.
	TimeLimit time.Duration
	// MaxNodes bounds branch-and-bound; zero means DefaultMaxNodes.
	MaxNodes int
	Verbose  bool
	Logger   *slog.Logger
}

// DefaultMaxNodes is the branch-and-bound node limit used when none is set.
const DefaultMaxNodes = 100000

// Solution is what a Backend returns. Values holds a value for every
// variable of the problem when Status is StatusOptimal.
type Solution struct {
	Status    Status
	Objective float64
	Values    map[*Variable]float64
	Nodes     int
	Message   string
}

// Result is the structured outcome of executing and solving a model.
type Result struct {
	Status    Status
	Objective *float64
	Variables map[string]float64
	Elapsed   time.Duration
	Solver    string
	Message   string
}

// IsOptimal reports whether an optimal solution was found.
func (r *Result) IsOptimal() bool { return r.Status == StatusOptimal }

// IsInfeasible reports whether the problem has no feasible point.
func (r *Result) IsInfeasible() bool { return r.Status == StatusInfeasible }

// IsUnbounded reports whether the objective is unbounded.
func (r *Result) IsUnbounded() bool { return r.Status == StatusUnbounded }

// NonZeroVariables returns the variables whose magnitude exceeds 1e-8.
func (r *Result) NonZeroVariables() map[string]float64 {
	out := make(map[string]float64)
	for name, v := range r.Variables {
		if math.Abs(v) > nonZeroTol {
			out[name] = v
		}
	}
	return out
}

// Names returns the variable names in sorted order.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Variables))
	for name := range r.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s", r.Status)
	if r.Objective != nil {
		fmt.Fprintf(&b, ", objective: %s", formatFloat(*r.Objective))
	}
	if len(r.Variables) > 0 {
		fmt.Fprintf(&b, ", variables: %d", len(r.Variables))
	}
	if r.Message != "" {
		fmt.Fprintf(&b, " (%s)", r.Message)
	}
	return b.String()
}

type resultJSON struct {
	Status         Status             `json:"status"`
	Objective      *float64           `json:"objective"`
	Variables      map[string]float64 `json:"variables"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	Solver         string             `json:"solver"`
	Message        string             `json:"message,omitempty"`
}

// MarshalJSON encodes the result with the elapsed time in seconds.
func (r *Result) MarshalJSON() ([]byte, error) {
	vars := r.Variables
	if vars == nil {
		vars = map[string]float64{}
	}
	return json.Marshal(resultJSON{
		Status:         r.Status,
		Objective:      r.Objective,
		Variables:      vars,
		ElapsedSeconds: r.Elapsed.Seconds(),
		Solver:         r.Solver,
		Message:        r.Message,
	})
}

// UnmarshalJSON decodes a result written by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result{
		Status:    raw.Status,
		Objective: raw.Objective,
		Variables: raw.Variables,
		Elapsed:   time.Duration(raw.ElapsedSeconds * float64(time.Second)),
		Solver:    raw.Solver,
		Message:   raw.Message,
	}
	return nil
}

// Failure builds a result for a run that produced no solution.
func Failure(status Status, backend string, elapsed time.Duration, err error) *Result {
	return &Result{
		Status:    status,
		Variables: map[string]float64{},
		Elapsed:   elapsed,
		Solver:    backend,
		Message:   err.Error(),
	}
}

// Run solves p with backend and maps the outcome onto a Result. Backend
// failures become StatusSolverError results rather than errors.
func Run(ctx context.Context, backend Backend, p *Problem, opts Options) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	start := time.Now()
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	vars := p.Variables()
	logger.Debug("solving problem",
		slog.String("problem", p.Name),
		slog.String("backend", backend.Name()),
		slog.Int("variables", len(vars)),
		slog.Int("constraints", len(p.Constraints)))

	sol, err := backend.Solve(ctx, p, opts)
	elapsed := time.Since(start)
	if err != nil {
		logger.Warn("solver failed", slog.String("backend", backend.Name()), slog.String("error", err.Error()))
		return Failure(StatusSolverError, backend.Name(), elapsed, err)
	}

	res := &Result{
		Status:    sol.Status,
		Variables: make(map[string]float64),
		Elapsed:   elapsed,
		Solver:    backend.Name(),
		Message:   sol.Message,
	}
	if sol.Status == StatusOptimal {
		obj := sol.Objective
		res.Objective = &obj
		for _, v := range vars {
			if val, ok := sol.Values[v]; ok && !math.IsNaN(val) {
				res.Variables[v.Name] = val
			}
		}
	}
	logger.Debug("solve finished",
		slog.String("status", string(res.Status)),
		slog.Int("nodes", sol.Nodes),
		slog.Duration("elapsed", elapsed))
	return res
}
