package solver

import (
	"math"
	"sort"
)

// projectFeasible projects w in place onto the feasible set
// {sum |w_i| <= leverage} intersected with the nonnegative orthant when
// longOnly is set. Both projections are exact.
func projectFeasible(w []float64, leverage float64, longOnly bool) {
	if longOnly {
		for i := range w {
			if w[i] < 0 {
				w[i] = 0
			}
		}
	}
	projectL1Ball(w, leverage)
}

// projectL1Ball projects w in place onto {v : sum |v_i| <= radius}
// using the sort-based simplex projection (Duchi et al. 2008).
func projectL1Ball(w []float64, radius float64) {
	if radius <= 0 {
		for i := range w {
			w[i] = 0
		}
		return
	}

	var norm float64
	for _, v := range w {
		norm += math.Abs(v)
	}
	if norm <= radius {
		return
	}

	// Project |w| onto the simplex of size radius, then restore signs.
	abs := make([]float64, len(w))
	for i, v := range w {
		abs[i] = math.Abs(v)
	}
	sorted := make([]float64, len(abs))
	copy(sorted, abs)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var cumsum, theta float64
	for i, u := range sorted {
		cumsum += u
		t := (cumsum - radius) / float64(i+1)
		if u-t <= 0 {
			break
		}
		theta = t
	}

	for i := range w {
		shrunk := abs[i] - theta
		if shrunk < 0 {
			shrunk = 0
		}
		if w[i] < 0 {
			shrunk = -shrunk
		}
		w[i] = shrunk
	}
}

// l1Norm returns sum |w_i|.
func l1Norm(w []float64) float64 {
	var norm float64
	for _, v := range w {
		norm += math.Abs(v)
	}
	return norm
}
