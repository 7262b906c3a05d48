package risk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/market"
)

// SampleCovariance estimates the full sample covariance of windowed
// returns, shrunk toward a scaled identity for conditioning.
type SampleCovariance struct {
	// MinPeriods is the minimum number of return observations required.
	MinPeriods int

	// Shrinkage is the identity-shrinkage weight delta in [0, 1]:
	// (1-delta)*S + delta*(tr(S)/n)*I.
	Shrinkage float64
}

// NewSampleCovariance returns a sample covariance model with the given
// minimum history and shrinkage weight.
func NewSampleCovariance(minPeriods int, shrinkage float64) *SampleCovariance {
	return &SampleCovariance{MinPeriods: minPeriods, Shrinkage: shrinkage}
}

func (m *SampleCovariance) MinHistory() int {
	if m.MinPeriods < 2 {
		return 2
	}
	return m.MinPeriods
}

// Forecast estimates the shrunk sample covariance of the window returns.
func (m *SampleCovariance) Forecast(w *market.Window) (*Estimate, error) {
	if w.Len() < m.MinHistory() {
		return nil, core.WrapError(core.ErrInsufficientHistory,
			fmt.Errorf("sample covariance needs %d periods, window has %d", m.MinHistory(), w.Len()))
	}

	assets := w.Assets()
	n := len(assets)
	rows := w.ReturnMatrix()

	x := mat.NewDense(len(rows), n, nil)
	for i, row := range rows {
		x.SetRow(i, row)
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, x, nil)

	if m.Shrinkage > 0 {
		var trace float64
		for i := 0; i < n; i++ {
			trace += cov.At(i, i)
		}
		target := trace / float64(n)
		delta := m.Shrinkage
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := (1 - delta) * cov.At(i, j)
				if i == j {
					v += delta * target
				}
				cov.SetSym(i, j, v)
			}
		}
	}

	return NewEstimate(assets, ensurePSD(cov)), nil
}
