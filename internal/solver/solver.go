// Package solver defines the narrow boundary between the policies and
// the convex optimization capability. Policies build a Problem and call
// an opaque Solver; anything beyond the accepted statuses is treated as
// infeasibility by the caller. The built-in ProjectedGradient solver can
// be swapped for an external binding without touching the engine.
package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/optfolio/optfolio/internal/risk"
)

// Status is the solver's reported outcome.
type Status string

const (
	StatusOptimal           Status = "optimal"
	StatusOptimalInaccurate Status = "optimal_inaccurate"
	StatusInfeasible        Status = "infeasible"
	StatusUnbounded         Status = "unbounded"
	StatusError             Status = "error"
)

// Accepted reports whether the status carries a usable allocation.
func (s Status) Accepted() bool {
	return s == StatusOptimal || s == StatusOptimalInaccurate
}

// Stage is one planning period of a (multi-period) allocation problem.
// All vectors follow the problem's asset ordering and exclude cash: the
// cash weight is implied as 1 - sum(w).
type Stage struct {
	// Returns is the expected-return forecast per asset.
	Returns []float64

	// Risk is the covariance forecast; nil disables the risk penalty.
	Risk *risk.Estimate

	// RiskAversion scales the quadratic risk penalty.
	RiskAversion float64

	// CostAversion scales the trading cost penalty.
	CostAversion float64

	// CostLinear are per-asset coefficients on |dw|.
	CostLinear []float64

	// CostImpact are per-asset coefficients on |dw|^ImpactExponent.
	CostImpact []float64

	// ImpactExponent is the impact power, defaulting to 1.5.
	ImpactExponent float64
}

// Problem is a chain of stages maximizing
//
//	sum_t mu_t'w_t - gamma_t w_t'S_t w_t - kappa_t cost(w_t - w_{t-1})
//
// over non-cash weight vectors w_1..w_H subject to leverage and optional
// long-only constraints. w_0 is the current allocation.
type Problem struct {
	Assets      []string
	Stages      []Stage
	Initial     []float64 // Current non-cash weights w_0
	MaxLeverage float64   // sum |w_i| <= MaxLeverage
	LongOnly    bool
}

// Solution is the solver's output.
type Solution struct {
	Status     Status
	Weights    [][]float64 // Per-stage non-cash weights; nil unless Accepted
	Objective  float64
	Iterations int
}

// Solver solves an allocation problem. Implementations must be
// deterministic given the same problem.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

// Validate checks the problem's shape and constraint consistency.
func (p *Problem) Validate() error {
	n := len(p.Assets)
	if n == 0 {
		return fmt.Errorf("problem has no assets")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("problem has no stages")
	}
	if len(p.Initial) != n {
		return fmt.Errorf("initial weights have %d entries, want %d", len(p.Initial), n)
	}
	for _, v := range p.Initial {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("initial weights contain a non-finite entry")
		}
	}
	for i, st := range p.Stages {
		if len(st.Returns) != n {
			return fmt.Errorf("stage %d returns have %d entries, want %d", i, len(st.Returns), n)
		}
		if st.Risk != nil && st.Risk.Dim() != n {
			return fmt.Errorf("stage %d risk dimension %d, want %d", i, st.Risk.Dim(), n)
		}
		if st.CostLinear != nil && len(st.CostLinear) != n {
			return fmt.Errorf("stage %d linear cost has %d entries, want %d", i, len(st.CostLinear), n)
		}
		if st.CostImpact != nil && len(st.CostImpact) != n {
			return fmt.Errorf("stage %d impact cost has %d entries, want %d", i, len(st.CostImpact), n)
		}
	}
	return nil
}

// Objective evaluates the problem objective at the given stage weights.
func (p *Problem) Objective(weights [][]float64) float64 {
	var total float64
	prev := p.Initial
	for t, st := range p.Stages {
		w := weights[t]
		for i := range w {
			total += st.Returns[i] * w[i]
		}
		if st.Risk != nil && st.RiskAversion > 0 {
			total -= st.RiskAversion * st.Risk.Quad(w)
		}
		if st.CostAversion > 0 {
			total -= st.CostAversion * stageCost(st, w, prev)
		}
		prev = w
	}
	return total
}

func stageCost(st Stage, w, prev []float64) float64 {
	p := st.ImpactExponent
	if p <= 1 {
		p = 1.5
	}
	var total float64
	for i := range w {
		d := math.Abs(w[i] - prev[i])
		if st.CostLinear != nil {
			total += st.CostLinear[i] * d
		}
		if st.CostImpact != nil {
			total += st.CostImpact[i] * math.Pow(d, p)
		}
	}
	return total
}
