// Package risk provides forecast risk models used as quadratic penalties
// by the optimization policies.
package risk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/optfolio/optfolio/internal/market"
)

// Estimate is a positive semi-definite covariance forecast over a fixed
// asset ordering.
type Estimate struct {
	assets []string
	cov    *mat.SymDense
}

// NewEstimate wraps a covariance matrix. The caller guarantees the
// matrix dimension matches the asset ordering.
func NewEstimate(assets []string, cov *mat.SymDense) *Estimate {
	return &Estimate{assets: assets, cov: cov}
}

// Assets returns the asset ordering of the covariance rows/columns.
func (e *Estimate) Assets() []string {
	out := make([]string, len(e.assets))
	copy(out, e.assets)
	return out
}

// Covariance returns the underlying matrix. Callers must not mutate it.
func (e *Estimate) Covariance() *mat.SymDense {
	return e.cov
}

// Dim returns the number of assets.
func (e *Estimate) Dim() int {
	return len(e.assets)
}

// Quad evaluates the quadratic form w'Σw.
func (e *Estimate) Quad(w []float64) float64 {
	n := e.cov.SymmetricDim()
	var total float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += w[i] * e.cov.At(i, j) * w[j]
		}
	}
	return total
}

// Grad evaluates the gradient 2Σw of the quadratic form.
func (e *Estimate) Grad(w []float64) []float64 {
	n := e.cov.SymmetricDim()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var v float64
		for j := 0; j < n; j++ {
			v += e.cov.At(i, j) * w[j]
		}
		out[i] = 2 * v
	}
	return out
}

// IsPSD reports whether the covariance admits a Cholesky factorization.
func (e *Estimate) IsPSD() bool {
	var chol mat.Cholesky
	return chol.Factorize(e.cov)
}

// Model produces a deterministic risk forecast from a market window.
type Model interface {
	// MinHistory is the minimum window length required for estimation.
	MinHistory() int

	// Forecast estimates the covariance of returns over the window.
	Forecast(w *market.Window) (*Estimate, error)
}

// ensurePSD shrinks the matrix toward a scaled identity until it
// factorizes. Estimation noise on short windows routinely produces tiny
// negative eigenvalues; shrinkage repairs those instead of failing.
func ensurePSD(cov *mat.SymDense) *mat.SymDense {
	n := cov.SymmetricDim()

	var chol mat.Cholesky
	if chol.Factorize(cov) {
		return cov
	}

	var trace float64
	for i := 0; i < n; i++ {
		trace += cov.At(i, i)
	}
	jitter := trace / float64(n) * 1e-10
	if jitter <= 0 {
		jitter = 1e-12
	}

	for tries := 0; tries < 40; tries++ {
		for i := 0; i < n; i++ {
			cov.SetSym(i, i, cov.At(i, i)+jitter)
		}
		if chol.Factorize(cov) {
			return cov
		}
		jitter *= 10
	}
	// Unreachable for finite input: a large enough diagonal dominates.
	panic(fmt.Sprintf("covariance not repairable to PSD after jitter %g", jitter))
}
