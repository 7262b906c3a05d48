package cost

import (
	"fmt"
	"math"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/market"
)

// TransactionCost prices trades with a proportional spread term, an
// optional fixed fee per nonzero trade, and a superlinear market-impact
// term: a*|x| + fixed + b*sigma*|x|^p / V^(p-1), with x the dollar trade,
// sigma the recent return volatility and V the recent dollar volume.
// The default exponent p = 3/2 follows the standard square-root impact
// model. Convex in the trade for p >= 1.
type TransactionCost struct {
	// SpreadDefault is the proportional cost rate applied when no
	// per-asset override exists.
	SpreadDefault float64

	// Spread holds per-asset proportional cost rates.
	Spread map[string]float64

	// Impact is the market-impact coefficient b; 0 disables impact.
	Impact float64

	// Exponent is the impact power p, defaulting to 1.5.
	Exponent float64

	// Fixed is a flat fee charged per asset with a nonzero trade.
	Fixed float64
}

// NewTransactionCost returns a proportional+impact cost model.
func NewTransactionCost(spread, impact float64) *TransactionCost {
	return &TransactionCost{SpreadDefault: spread, Impact: impact, Exponent: 1.5}
}

func (c *TransactionCost) exponent() float64 {
	if c.Exponent <= 1 {
		return 1.5
	}
	return c.Exponent
}

func (c *TransactionCost) spread(asset string) float64 {
	if v, ok := c.Spread[asset]; ok {
		return v
	}
	return c.SpreadDefault
}

// Transaction prices the trade at the window's current prices.
func (c *TransactionCost) Transaction(trade core.TradeVector, w *market.Window) (float64, error) {
	prices := w.Prices()
	p := c.exponent()

	var total float64
	for asset, qty := range trade {
		if qty == 0 {
			continue
		}
		price, ok := prices[asset]
		if !ok {
			return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no price for traded asset %s", asset))
		}

		x := math.Abs(price * qty)
		total += c.spread(asset)*x + c.Fixed

		if c.Impact > 0 {
			dollarVolume := w.MeanVolume(asset) * price
			if dollarVolume > 0 {
				sigma := w.Volatility(asset)
				total += c.Impact * sigma * math.Pow(x, p) / math.Pow(dollarVolume, p-1)
			}
		}
	}
	return total, nil
}

// Holding is zero for a pure transaction cost model.
func (c *TransactionCost) Holding(core.Holdings, *market.Window) (float64, error) {
	return 0, nil
}

// WeightCoefficients converts the model into per-asset penalty
// coefficients in weight space for a portfolio of the given value:
// linear[i] applies to |dw_i| and impact[i] to |dw_i|^p. Asset order
// follows w.Assets().
func (c *TransactionCost) WeightCoefficients(w *market.Window, value float64) (linear, impact []float64) {
	assets := w.Assets()
	prices := w.Prices()
	p := c.exponent()

	linear = make([]float64, len(assets))
	impact = make([]float64, len(assets))
	for i, a := range assets {
		linear[i] = c.spread(a)
		if c.Impact > 0 && value > 0 {
			dollarVolume := w.MeanVolume(a) * prices[a]
			if dollarVolume > 0 {
				// b*sigma*|value*dw|^p / V^(p-1), normalized by value.
				impact[i] = c.Impact * w.Volatility(a) * math.Pow(value/dollarVolume, p-1)
			}
		}
	}
	return linear, impact
}
