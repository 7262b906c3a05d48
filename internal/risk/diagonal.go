package risk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/market"
)

// DiagonalVariance forecasts a diagonal covariance from per-asset EWMA
// return variance. Cheap fallback when cross-asset structure is not
// needed or history is short.
type DiagonalVariance struct {
	// MinPeriods is the minimum number of return observations required.
	MinPeriods int

	// Lambda is the EWMA decay in (0, 1); larger means slower decay.
	Lambda float64
}

// NewDiagonalVariance returns a diagonal EWMA variance model.
func NewDiagonalVariance(minPeriods int, lambda float64) *DiagonalVariance {
	return &DiagonalVariance{MinPeriods: minPeriods, Lambda: lambda}
}

func (m *DiagonalVariance) MinHistory() int {
	if m.MinPeriods < 2 {
		return 2
	}
	return m.MinPeriods
}

// Forecast estimates per-asset EWMA variances on the diagonal.
func (m *DiagonalVariance) Forecast(w *market.Window) (*Estimate, error) {
	if w.Len() < m.MinHistory() {
		return nil, core.WrapError(core.ErrInsufficientHistory,
			fmt.Errorf("diagonal variance needs %d periods, window has %d", m.MinHistory(), w.Len()))
	}

	lambda := m.Lambda
	if lambda <= 0 || lambda >= 1 {
		lambda = 0.94
	}

	assets := w.Assets()
	cov := mat.NewSymDense(len(assets), nil)

	for i, a := range assets {
		returns := w.Returns(a)

		variance := returns[0] * returns[0]
		for _, r := range returns[1:] {
			variance = lambda*variance + (1-lambda)*r*r
		}
		cov.SetSym(i, i, variance)
	}

	return NewEstimate(assets, ensurePSD(cov)), nil
}
