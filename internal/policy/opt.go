package policy

import (
	"context"
	"fmt"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/cost"
	"github.com/optfolio/optfolio/internal/market"
	"github.com/optfolio/optfolio/internal/risk"
	"github.com/optfolio/optfolio/internal/solver"
)

// Hyperparameter names shared by the optimization policies.
const (
	ParamRiskAversion = "risk_aversion"
	ParamCostAversion = "cost_aversion"
	ParamMaxLeverage  = "max_leverage"
	ParamHorizon      = "horizon"
)

// OptParams are the tunable knobs of the optimization policies.
type OptParams struct {
	RiskAversion float64
	CostAversion float64
	MaxLeverage  float64
	LongOnly     bool
	Horizon      int // Planning periods; 1 is single-period
}

// DefaultOptParams returns conservative defaults.
func DefaultOptParams() OptParams {
	return OptParams{
		RiskAversion: 5,
		CostAversion: 1,
		MaxLeverage:  1,
		Horizon:      1,
	}
}

// optPolicy is the shared machinery of SinglePeriodOpt and
// MultiPeriodOpt: both build the same per-stage problem from past-mean
// return forecasts, a risk model and weight-space cost coefficients,
// so a one-stage multi-period problem is identical to the
// single-period one.
type optPolicy struct {
	riskModel risk.Model
	costModel *cost.TransactionCost
	solve     solver.Solver
	params    OptParams
}

func (p *optPolicy) minHistory() int {
	min := 2
	if p.riskModel != nil && p.riskModel.MinHistory() > min {
		min = p.riskModel.MinHistory()
	}
	return min
}

func (p *optPolicy) buildProblem(h core.Holdings, w *market.Window, horizon int) (*solver.Problem, error) {
	assets := w.Assets()
	prices := w.Prices()
	value := h.Value(prices)
	if value <= 0 {
		return nil, core.WrapError(core.ErrPolicyInfeasible,
			fmt.Errorf("portfolio value %v not positive at %s", value, w.Now().Format("2006-01-02")))
	}

	estimate, err := p.riskModel.Forecast(w)
	if err != nil {
		return nil, err
	}

	mu := w.MeanReturns()

	var costLinear, costImpact []float64
	var exponent float64
	if p.costModel != nil {
		costLinear, costImpact = p.costModel.WeightCoefficients(w, value)
		exponent = p.costModel.Exponent
	}

	stages := make([]solver.Stage, horizon)
	for t := range stages {
		stages[t] = solver.Stage{
			Returns:        mu,
			Risk:           estimate,
			RiskAversion:   p.params.RiskAversion,
			CostAversion:   p.params.CostAversion,
			CostLinear:     costLinear,
			CostImpact:     costImpact,
			ImpactExponent: exponent,
		}
	}

	return &solver.Problem{
		Assets:      assets,
		Stages:      stages,
		Initial:     currentWeights(h, assets, prices, value),
		MaxLeverage: p.params.MaxLeverage,
		LongOnly:    p.params.LongOnly,
	}, nil
}

// trade solves the problem and converts the first stage's allocation
// into a trade vector (receding horizon: later stages are discarded).
func (p *optPolicy) trade(ctx context.Context, h core.Holdings, w *market.Window, horizon int) (core.TradeVector, error) {
	problem, err := p.buildProblem(h, w, horizon)
	if err != nil {
		return nil, err
	}

	sol, err := p.solve.Solve(ctx, problem)
	if err != nil {
		return nil, core.WrapError(core.ErrPolicyInfeasible, err)
	}
	if !sol.Status.Accepted() {
		return nil, core.WrapError(core.ErrPolicyInfeasible,
			fmt.Errorf("solver status %s at %s", sol.Status, w.Now().Format("2006-01-02")))
	}

	prices := w.Prices()
	value := h.Value(prices)
	return tradeToTarget(h, problem.Assets, sol.Weights[0], prices, value), nil
}

func (p *optPolicy) hyperparameter(name string) (float64, error) {
	switch name {
	case ParamRiskAversion:
		return p.params.RiskAversion, nil
	case ParamCostAversion:
		return p.params.CostAversion, nil
	case ParamMaxLeverage:
		return p.params.MaxLeverage, nil
	default:
		return 0, fmt.Errorf("unknown hyperparameter %q", name)
	}
}

func (p *optPolicy) setHyperparameter(name string, value float64) error {
	if value < 0 {
		return fmt.Errorf("hyperparameter %q must be non-negative, got %v", name, value)
	}
	switch name {
	case ParamRiskAversion:
		p.params.RiskAversion = value
	case ParamCostAversion:
		p.params.CostAversion = value
	case ParamMaxLeverage:
		p.params.MaxLeverage = value
	default:
		return fmt.Errorf("unknown hyperparameter %q", name)
	}
	return nil
}
