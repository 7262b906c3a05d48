package market

import (
	"math"
	"time"
)

// Window is an immutable lookback slice of a Series ending at the current
// simulation step. It is built fresh for each step by the simulator and
// shared read-only with policies, risk models and cost models.
type Window struct {
	assets []string
	snaps  []Snapshot
}

// Assets returns the sorted asset universe.
func (w *Window) Assets() []string {
	out := make([]string, len(w.assets))
	copy(out, w.assets)
	return out
}

// Len returns the number of periods in the window.
func (w *Window) Len() int {
	return len(w.snaps)
}

// Now returns the timestamp of the last (current) period.
func (w *Window) Now() time.Time {
	return w.snaps[len(w.snaps)-1].Time
}

// Prices returns the current (last period) price per asset.
func (w *Window) Prices() map[string]float64 {
	last := w.snaps[len(w.snaps)-1]
	out := make(map[string]float64, len(w.assets))
	for _, a := range w.assets {
		out[a] = last.Obs[a].Price
	}
	return out
}

// Returns returns the chronological return history of one asset.
func (w *Window) Returns(asset string) []float64 {
	out := make([]float64, len(w.snaps))
	for i, s := range w.snaps {
		out[i] = s.Obs[asset].Return
	}
	return out
}

// ReturnMatrix returns the window's returns as rows of periods and
// columns following Assets() order.
func (w *Window) ReturnMatrix() [][]float64 {
	out := make([][]float64, len(w.snaps))
	for i, s := range w.snaps {
		row := make([]float64, len(w.assets))
		for j, a := range w.assets {
			row[j] = s.Obs[a].Return
		}
		out[i] = row
	}
	return out
}

// MeanReturns returns the per-asset mean return over the window, in
// Assets() order.
func (w *Window) MeanReturns() []float64 {
	out := make([]float64, len(w.assets))
	for _, s := range w.snaps {
		for j, a := range w.assets {
			out[j] += s.Obs[a].Return
		}
	}
	for j := range out {
		out[j] /= float64(len(w.snaps))
	}
	return out
}

// MeanVolume returns one asset's mean traded volume over the window.
func (w *Window) MeanVolume(asset string) float64 {
	var sum float64
	for _, s := range w.snaps {
		sum += s.Obs[asset].Volume
	}
	return sum / float64(len(w.snaps))
}

// Volatility returns one asset's return standard deviation over the
// window (population estimate; 0 for single-period windows).
func (w *Window) Volatility(asset string) float64 {
	n := len(w.snaps)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, s := range w.snaps {
		mean += s.Obs[asset].Return
	}
	mean /= float64(n)

	var variance float64
	for _, s := range w.snaps {
		d := s.Obs[asset].Return - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(n))
}
