// Package market provides aligned market time series and the rolling
// lookback windows consumed by policies, risk models and cost models.
package market

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/optfolio/optfolio/internal/core"
)

// Observation is a single asset's state at one timestamp.
type Observation struct {
	Price  float64
	Return float64 // Simple return realized over the period ending at the timestamp
	Volume float64 // Traded volume in units of the asset, 0 if unknown
}

// Snapshot is the market state of the whole universe at one timestamp.
type Snapshot struct {
	Time time.Time
	Obs  map[string]Observation
}

// Series is an ordered, aligned sequence of snapshots over a fixed asset
// universe. Immutable after construction.
type Series struct {
	assets []string
	snaps  []Snapshot
}

// NewSeries validates and wraps the given snapshots. Timestamps must be
// strictly increasing and every snapshot must carry a finite observation
// for every asset of the first snapshot's universe.
func NewSeries(snaps []Snapshot) (*Series, error) {
	if len(snaps) == 0 {
		return nil, core.ErrNoData
	}

	assets := make([]string, 0, len(snaps[0].Obs))
	for a := range snaps[0].Obs {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	if len(assets) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty universe at %s", snaps[0].Time.Format(time.RFC3339)))
	}

	for i, s := range snaps {
		if i > 0 && !s.Time.After(snaps[i-1].Time) {
			return nil, core.WrapError(core.ErrNoData,
				fmt.Errorf("timestamps not strictly increasing at index %d (%s)", i, s.Time.Format(time.RFC3339)))
		}
		for _, a := range assets {
			obs, ok := s.Obs[a]
			if !ok {
				return nil, core.WrapError(core.ErrInsufficientHistory,
					fmt.Errorf("asset %s missing at %s", a, s.Time.Format(time.RFC3339)))
			}
			if !finite(obs.Price) || !finite(obs.Return) || !finite(obs.Volume) {
				return nil, core.WrapError(core.ErrNoData,
					fmt.Errorf("non-finite observation for %s at %s", a, s.Time.Format(time.RFC3339)))
			}
			if obs.Price <= 0 {
				return nil, core.WrapError(core.ErrNoData,
					fmt.Errorf("non-positive price for %s at %s", a, s.Time.Format(time.RFC3339)))
			}
		}
	}

	return &Series{assets: assets, snaps: snaps}, nil
}

// Assets returns the sorted asset universe.
func (s *Series) Assets() []string {
	out := make([]string, len(s.assets))
	copy(out, s.assets)
	return out
}

// Len returns the number of snapshots.
func (s *Series) Len() int {
	return len(s.snaps)
}

// Time returns the timestamp of snapshot i.
func (s *Series) Time(i int) time.Time {
	return s.snaps[i].Time
}

// At returns snapshot i.
func (s *Series) At(i int) Snapshot {
	return s.snaps[i]
}

// IndexAtOrAfter returns the first index whose timestamp is not before t,
// or Len() if no such snapshot exists.
func (s *Series) IndexAtOrAfter(t time.Time) int {
	return sort.Search(len(s.snaps), func(i int) bool {
		return !s.snaps[i].Time.Before(t)
	})
}

// Window builds the lookback window of the given length ending at
// snapshot index end (inclusive). It fails with ErrInsufficientHistory
// when fewer than lookback snapshots are available.
func (s *Series) Window(end, lookback int) (*Window, error) {
	if end < 0 || end >= len(s.snaps) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("snapshot index %d out of range", end))
	}
	if lookback < 1 {
		lookback = 1
	}
	start := end - lookback + 1
	if start < 0 {
		return nil, core.WrapError(core.ErrInsufficientHistory,
			fmt.Errorf("need %d periods before %s, have %d", lookback, s.snaps[end].Time.Format(time.RFC3339), end+1))
	}
	return &Window{assets: s.assets, snaps: s.snaps[start : end+1]}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
