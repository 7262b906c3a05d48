package cost

import (
	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/market"
)

// HoldingCost charges a per-period borrow fee on short positions, net
// of a per-period dividend yield on long positions. The aggregate is
// floored at zero so the reported holding cost is never negative.
type HoldingCost struct {
	// BorrowDefault is the per-period borrow rate on short dollar value.
	BorrowDefault float64

	// Borrow holds per-asset borrow rate overrides.
	Borrow map[string]float64

	// Dividend is the per-period dividend yield credited on long value.
	Dividend float64
}

// NewHoldingCost returns a borrow-fee holding cost model.
func NewHoldingCost(borrow, dividend float64) *HoldingCost {
	return &HoldingCost{BorrowDefault: borrow, Dividend: dividend}
}

func (c *HoldingCost) borrow(asset string) float64 {
	if v, ok := c.Borrow[asset]; ok {
		return v
	}
	return c.BorrowDefault
}

// Transaction is zero for a pure holding cost model.
func (c *HoldingCost) Transaction(core.TradeVector, *market.Window) (float64, error) {
	return 0, nil
}

// Holding prices carrying the holdings for one period.
func (c *HoldingCost) Holding(h core.Holdings, w *market.Window) (float64, error) {
	prices := w.Prices()

	var total float64
	for asset, qty := range h {
		if asset == core.CashKey {
			continue
		}
		value := prices[asset] * qty
		if value < 0 {
			total += c.borrow(asset) * -value
		} else {
			total -= c.Dividend * value
		}
	}
	if total < 0 {
		total = 0
	}
	return total, nil
}

// Composite sums the legs of several cost models.
type Composite []Model

func (cs Composite) Transaction(trade core.TradeVector, w *market.Window) (float64, error) {
	var total float64
	for _, c := range cs {
		v, err := c.Transaction(trade, w)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

func (cs Composite) Holding(h core.Holdings, w *market.Window) (float64, error) {
	var total float64
	for _, c := range cs {
		v, err := c.Holding(h, w)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}
