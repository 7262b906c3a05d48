package solver

import (
	"context"
	"fmt"
	"math"
)

// ProjectedGradient is the built-in solver: projected subgradient
// descent with a diminishing step over the stacked stage weights. The
// nonsmooth cost terms make plain gradient descent inapplicable; the
// best iterate seen is returned since subgradient steps are not
// monotone. Deterministic given the same problem.
type ProjectedGradient struct {
	// MaxIters caps the number of iterations; default 2000.
	MaxIters int

	// StepSize is the initial step, decayed as 1/sqrt(k); default 0.1.
	StepSize float64

	// Tol is the relative objective-improvement tolerance used to
	// declare convergence; default 1e-9.
	Tol float64
}

// NewProjectedGradient returns a solver with default settings.
func NewProjectedGradient() *ProjectedGradient {
	return &ProjectedGradient{}
}

const stallLimit = 50 // Iterations without improvement before stopping

func (s *ProjectedGradient) maxIters() int {
	if s.MaxIters <= 0 {
		return 2000
	}
	return s.MaxIters
}

func (s *ProjectedGradient) stepSize() float64 {
	if s.StepSize <= 0 {
		return 0.1
	}
	return s.StepSize
}

func (s *ProjectedGradient) tol() float64 {
	if s.Tol <= 0 {
		return 1e-9
	}
	return s.Tol
}

// Solve runs projected subgradient descent on the problem.
func (s *ProjectedGradient) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return &Solution{Status: StatusError}, err
	}
	if p.MaxLeverage < 0 {
		return &Solution{Status: StatusInfeasible}, nil
	}

	n := len(p.Assets)
	H := len(p.Stages)

	// Start from the current allocation projected onto the feasible set.
	weights := make([][]float64, H)
	for t := range weights {
		w := make([]float64, n)
		copy(w, p.Initial)
		projectFeasible(w, p.MaxLeverage, p.LongOnly)
		weights[t] = w
	}

	best := cloneWeights(weights)
	bestObj := p.Objective(best)
	if math.IsNaN(bestObj) || math.IsInf(bestObj, 0) {
		return &Solution{Status: StatusError}, fmt.Errorf("objective not finite at start")
	}

	stalled := 0
	iters := 0
	converged := false

	grad := make([][]float64, H)
	for t := range grad {
		grad[t] = make([]float64, n)
	}

	for k := 0; k < s.maxIters(); k++ {
		if k%64 == 0 {
			select {
			case <-ctx.Done():
				return &Solution{Status: StatusError}, ctx.Err()
			default:
			}
		}
		iters = k + 1

		s.subgradient(p, weights, grad)

		step := s.stepSize() / math.Sqrt(float64(k+1))
		for t := 0; t < H; t++ {
			w := weights[t]
			for i := 0; i < n; i++ {
				w[i] -= step * grad[t][i]
				if math.IsNaN(w[i]) || math.IsInf(w[i], 0) {
					return &Solution{Status: StatusError}, fmt.Errorf("iterate diverged at iteration %d", k)
				}
			}
			projectFeasible(w, p.MaxLeverage, p.LongOnly)
		}

		obj := p.Objective(weights)
		if obj > bestObj+s.tol()*(1+math.Abs(bestObj)) {
			bestObj = obj
			best = cloneWeights(weights)
			stalled = 0
		} else {
			stalled++
			if stalled >= stallLimit {
				converged = true
				break
			}
		}
	}

	status := StatusOptimalInaccurate
	if converged {
		status = StatusOptimal
	}

	return &Solution{
		Status:     status,
		Weights:    best,
		Objective:  bestObj,
		Iterations: iters,
	}, nil
}

// subgradient fills grad with a subgradient of the negated objective.
// Stage t's weights appear in its own cost term and, with opposite
// sign, in stage t+1's.
func (s *ProjectedGradient) subgradient(p *Problem, weights [][]float64, grad [][]float64) {
	n := len(p.Assets)
	H := len(p.Stages)

	for t := 0; t < H; t++ {
		st := p.Stages[t]
		w := weights[t]
		g := grad[t]

		for i := 0; i < n; i++ {
			g[i] = -st.Returns[i]
		}

		if st.Risk != nil && st.RiskAversion > 0 {
			rg := st.Risk.Grad(w)
			for i := 0; i < n; i++ {
				g[i] += st.RiskAversion * rg[i]
			}
		}

		if st.CostAversion > 0 {
			prev := p.Initial
			if t > 0 {
				prev = weights[t-1]
			}
			for i := 0; i < n; i++ {
				g[i] += st.CostAversion * costSlope(st, i, w[i]-prev[i])
			}
		}

		if t+1 < H {
			next := p.Stages[t+1]
			if next.CostAversion > 0 {
				wn := weights[t+1]
				for i := 0; i < n; i++ {
					g[i] -= next.CostAversion * costSlope(next, i, wn[i]-w[i])
				}
			}
		}
	}
}

// costSlope returns d/dd of c_i|d| + b_i|d|^p, using 0 on the kink.
func costSlope(st Stage, i int, d float64) float64 {
	if d == 0 {
		return 0
	}
	p := st.ImpactExponent
	if p <= 1 {
		p = 1.5
	}
	sign := 1.0
	if d < 0 {
		sign = -1
	}
	var slope float64
	if st.CostLinear != nil {
		slope += st.CostLinear[i]
	}
	if st.CostImpact != nil {
		slope += st.CostImpact[i] * p * math.Pow(math.Abs(d), p-1)
	}
	return sign * slope
}

func cloneWeights(w [][]float64) [][]float64 {
	out := make([][]float64, len(w))
	for i := range w {
		out[i] = make([]float64, len(w[i]))
		copy(out[i], w[i])
	}
	return out
}
