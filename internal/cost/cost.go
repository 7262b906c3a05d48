// Package cost models transaction and holding costs charged by the
// simulator and penalized inside the optimization policies. Every model
// must be convex in the trade vector so policy problems stay tractable.
package cost

import (
	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/market"
)

// Model prices one simulation step.
type Model interface {
	// Transaction returns the cost of executing the trade at the
	// window's current prices. Zero trade costs exactly zero.
	Transaction(trade core.TradeVector, w *market.Window) (float64, error)

	// Holding returns the cost of carrying the post-trade holdings for
	// one period.
	Holding(h core.Holdings, w *market.Window) (float64, error)
}

// Evaluate is a convenience helper returning both cost legs.
func Evaluate(m Model, trade core.TradeVector, postTrade core.Holdings, w *market.Window) (txn, hold float64, err error) {
	txn, err = m.Transaction(trade, w)
	if err != nil {
		return 0, 0, err
	}
	hold, err = m.Holding(postTrade, w)
	if err != nil {
		return 0, 0, err
	}
	return txn, hold, nil
}

// Zero is a free-trading model, useful in tests and idealized runs.
type Zero struct{}

func (Zero) Transaction(core.TradeVector, *market.Window) (float64, error) { return 0, nil }
func (Zero) Holding(core.Holdings, *market.Window) (float64, error)        { return 0, nil }
