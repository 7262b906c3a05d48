package policy

import (
	"context"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/cost"
	"github.com/optfolio/optfolio/internal/market"
	"github.com/optfolio/optfolio/internal/risk"
	"github.com/optfolio/optfolio/internal/solver"
)

// SinglePeriodOpt solves one convex program per step: maximize expected
// return minus risk and trading-cost penalties subject to budget and
// leverage constraints.
type SinglePeriodOpt struct {
	opt optPolicy
}

// NewSinglePeriodOpt builds a single-period optimization policy. The
// cost model may be nil to disable the cost penalty.
func NewSinglePeriodOpt(riskModel risk.Model, costModel *cost.TransactionCost, solve solver.Solver, params OptParams) *SinglePeriodOpt {
	return &SinglePeriodOpt{opt: optPolicy{
		riskModel: riskModel,
		costModel: costModel,
		solve:     solve,
		params:    params,
	}}
}

func (p *SinglePeriodOpt) Name() string {
	return "spo"
}

func (p *SinglePeriodOpt) MinHistory() int {
	return p.opt.minHistory()
}

// Trade solves the single-period program and returns the rebalance.
func (p *SinglePeriodOpt) Trade(ctx context.Context, h core.Holdings, w *market.Window) (core.TradeVector, error) {
	return p.opt.trade(ctx, h, w, 1)
}

// Params returns the current hyperparameter values.
func (p *SinglePeriodOpt) Params() OptParams {
	return p.opt.params
}

func (p *SinglePeriodOpt) Hyperparameters() []string {
	return []string{ParamRiskAversion, ParamCostAversion, ParamMaxLeverage}
}

func (p *SinglePeriodOpt) Hyperparameter(name string) (float64, error) {
	return p.opt.hyperparameter(name)
}

func (p *SinglePeriodOpt) SetHyperparameter(name string, value float64) error {
	return p.opt.setHyperparameter(name, value)
}

// Clone returns an independent copy. Risk/cost models and the solver
// are shared: they are read-only during runs.
func (p *SinglePeriodOpt) Clone() Tunable {
	clone := *p
	return &clone
}
