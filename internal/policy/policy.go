// Package policy implements the trading policies evaluated by the
// simulator: a static uniform rebalancer and single-/multi-period
// convex optimization policies.
package policy

import (
	"context"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/market"
)

// Policy decides the trade for one simulation step. Implementations
// must not mutate the holdings or the window.
type Policy interface {
	// Name identifies the policy in logs and results.
	Name() string

	// MinHistory is the minimum window length the policy requires.
	MinHistory() int

	// Trade returns the signed quantities to trade given the current
	// holdings and market window.
	Trade(ctx context.Context, h core.Holdings, w *market.Window) (core.TradeVector, error)
}

// Tunable is a policy exposing named scalar hyperparameters for the
// outer search. Hyperparameters are only mutated between backtest runs,
// never during one; Clone provides an independent instance per
// candidate evaluation.
type Tunable interface {
	Policy

	// Hyperparameters lists the tunable parameter names in a stable order.
	Hyperparameters() []string

	// Hyperparameter returns the named parameter's current value.
	Hyperparameter(name string) (float64, error)

	// SetHyperparameter sets the named parameter.
	SetHyperparameter(name string, value float64) error

	// Clone returns an independent copy sharing no mutable state.
	Clone() Tunable
}

// tradeToTarget converts target non-cash weights into a trade vector
// for a portfolio of the given value at the given prices.
func tradeToTarget(h core.Holdings, assets []string, target []float64, prices map[string]float64, value float64) core.TradeVector {
	trade := make(core.TradeVector, len(assets))
	for i, a := range assets {
		targetQty := target[i] * value / prices[a]
		trade[a] = targetQty - h[a]
	}
	return trade
}

// currentWeights returns the non-cash weights of the holdings in the
// given asset order.
func currentWeights(h core.Holdings, assets []string, prices map[string]float64, value float64) []float64 {
	out := make([]float64, len(assets))
	for i, a := range assets {
		out[i] = prices[a] * h[a] / value
	}
	return out
}
