package policy

import (
	"context"
	"fmt"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/market"
)

// Uniform rebalances toward equal weight on all non-cash assets,
// keeping a fixed cash weight. Deterministic, no optimization call.
type Uniform struct {
	// CashWeight is the portfolio fraction kept in cash, default 0.
	CashWeight float64
}

// NewUniform returns a fully invested equal-weight policy.
func NewUniform() *Uniform {
	return &Uniform{}
}

func (p *Uniform) Name() string {
	return "uniform"
}

func (p *Uniform) MinHistory() int {
	return 1
}

// Trade rebalances the portfolio to equal non-cash weights.
func (p *Uniform) Trade(_ context.Context, h core.Holdings, w *market.Window) (core.TradeVector, error) {
	if !h.IsValid() {
		return nil, core.WrapError(core.ErrConstraintViolation, fmt.Errorf("malformed holdings"))
	}

	assets := w.Assets()
	prices := w.Prices()
	value := h.Value(prices)
	if value <= 0 {
		return nil, core.WrapError(core.ErrPolicyInfeasible,
			fmt.Errorf("portfolio value %v not positive at %s", value, w.Now().Format("2006-01-02")))
	}

	weight := (1 - p.CashWeight) / float64(len(assets))
	target := make([]float64, len(assets))
	for i := range target {
		target[i] = weight
	}

	return tradeToTarget(h, assets, target, prices, value), nil
}
