package policy

import (
	"context"
	"fmt"
	"math"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/cost"
	"github.com/optfolio/optfolio/internal/market"
	"github.com/optfolio/optfolio/internal/risk"
	"github.com/optfolio/optfolio/internal/solver"
)

// MultiPeriodOpt plans over a lookahead horizon of H linked periods,
// solved jointly, and executes only the first period's decision
// (receding horizon). The joint formulation matters when trading costs
// are superlinear in trade size: solving period-by-period overstates
// the near-term cost of a large rebalance. With horizon 1 it produces
// the same trade as SinglePeriodOpt.
type MultiPeriodOpt struct {
	opt optPolicy
}

// NewMultiPeriodOpt builds a multi-period optimization policy.
func NewMultiPeriodOpt(riskModel risk.Model, costModel *cost.TransactionCost, solve solver.Solver, params OptParams) *MultiPeriodOpt {
	if params.Horizon < 1 {
		params.Horizon = 1
	}
	return &MultiPeriodOpt{opt: optPolicy{
		riskModel: riskModel,
		costModel: costModel,
		solve:     solve,
		params:    params,
	}}
}

func (p *MultiPeriodOpt) Name() string {
	return "mpo"
}

func (p *MultiPeriodOpt) MinHistory() int {
	return p.opt.minHistory()
}

// Trade solves the H-stage program and returns the first-stage rebalance.
func (p *MultiPeriodOpt) Trade(ctx context.Context, h core.Holdings, w *market.Window) (core.TradeVector, error) {
	return p.opt.trade(ctx, h, w, p.opt.params.Horizon)
}

// Params returns the current hyperparameter values.
func (p *MultiPeriodOpt) Params() OptParams {
	return p.opt.params
}

func (p *MultiPeriodOpt) Hyperparameters() []string {
	return []string{ParamRiskAversion, ParamCostAversion, ParamMaxLeverage, ParamHorizon}
}

func (p *MultiPeriodOpt) Hyperparameter(name string) (float64, error) {
	if name == ParamHorizon {
		return float64(p.opt.params.Horizon), nil
	}
	return p.opt.hyperparameter(name)
}

func (p *MultiPeriodOpt) SetHyperparameter(name string, value float64) error {
	if name == ParamHorizon {
		h := int(math.Round(value))
		if h < 1 {
			return fmt.Errorf("horizon must be >= 1, got %v", value)
		}
		p.opt.params.Horizon = h
		return nil
	}
	return p.opt.setHyperparameter(name, value)
}

// Clone returns an independent copy. Risk/cost models and the solver
// are shared: they are read-only during runs.
func (p *MultiPeriodOpt) Clone() Tunable {
	clone := *p
	return &clone
}
