package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

func init() {
	Register(Simplex{})
}

// Simplex solves linear programs with gonum's simplex method and
// mixed-integer programs by depth-first branch-and-bound over it.
type Simplex struct{}

// Name implements Backend.
func (Simplex) Name() string { return "simplex" }

type bbNode struct {
	lower, upper []float64
}

// Solve implements Backend.
func (Simplex) Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	rel := newRelaxation(p)
	lower, upper := rel.bounds()
	stack := []bbNode{{lower, upper}}
	var (
		best    []float64
		bestObj = math.Inf(1)
		nodes   int
		stopped string
	)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			stopped = fmt.Sprintf("stopped after %d nodes: %v", nodes, err)
			break
		}
		if nodes >= maxNodes {
			stopped = fmt.Sprintf("node limit of %d reached", maxNodes)
			break
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		res, err := rel.solve(node.lower, node.upper)
		if err != nil {
			return nil, fmt.Errorf("failed to solve relaxation: %w", err)
		}
		switch res.status {
		case lpInfeasible:
			continue
		case lpUnbounded:
			return &Solution{Status: StatusUnbounded, Nodes: nodes}, nil
		}
		if res.obj >= bestObj-feasTol {
			continue
		}

		j := rel.fractional(res.x)
		if j < 0 {
			best, bestObj = res.x, res.obj
			if opts.Verbose {
				logger.Info("new incumbent", slog.Int("node", nodes), slog.Float64("objective", userObjective(p, bestObj)))
			}
			continue
		}

		v := res.x[j]
		down := bbNode{lower: node.lower, upper: append([]float64(nil), node.upper...)}
		down.upper[j] = math.Floor(v)
		up := bbNode{lower: append([]float64(nil), node.lower...), upper: node.upper}
		up.lower[j] = math.Ceil(v)
		stack = append(stack, up, down)
	}

	if best == nil {
		if stopped != "" {
			return &Solution{Status: StatusUnknown, Nodes: nodes, Message: stopped}, nil
		}
		return &Solution{Status: StatusInfeasible, Nodes: nodes}, nil
	}

	sol := &Solution{
		Status:    StatusOptimal,
		Objective: userObjective(p, bestObj),
		Values:    make(map[*Variable]float64, len(rel.vars)),
		Nodes:     nodes,
	}
	if stopped != "" {
		sol.Message = stopped + "; best solution found is not proven optimal"
	}
	for i, v := range rel.vars {
		val := best[i]
		if v.Category.IsIntegral() {
			val = math.Round(val)
		}
		if val == 0 {
			val = 0 // normalize -0
		}
		sol.Values[v] = val
	}
	return sol, nil
}

// userObjective converts a minimization-form objective back to p's sense.
func userObjective(p *Problem, obj float64) float64 {
	if p.Sense == Maximize {
		obj = -obj
	}
	if obj == 0 {
		return 0
	}
	return obj
}
