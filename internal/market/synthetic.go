package market

import (
	"math"
	"math/rand"
	"time"
)

// SyntheticConfig controls the synthetic series generator.
type SyntheticConfig struct {
	Assets     []string
	Periods    int
	Start      time.Time
	Step       time.Duration
	Drift      float64 // Per-period mean return
	Volatility float64 // Per-period return standard deviation
	Seed       int64
}

// Synthetic generates a deterministic geometric random-walk series for
// demos and tests. The same config always yields the same series.
func Synthetic(cfg SyntheticConfig) (*Series, error) {
	if cfg.Step <= 0 {
		cfg.Step = 24 * time.Hour
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	prices := make(map[string]float64, len(cfg.Assets))
	for _, a := range cfg.Assets {
		prices[a] = 50 + 100*rng.Float64()
	}

	snaps := make([]Snapshot, 0, cfg.Periods)
	for i := 0; i < cfg.Periods; i++ {
		obs := make(map[string]Observation, len(cfg.Assets))
		for _, a := range cfg.Assets {
			ret := 0.0
			if i > 0 {
				ret = cfg.Drift + cfg.Volatility*rng.NormFloat64()
				// Simple returns below -100% are not meaningful.
				ret = math.Max(ret, -0.95)
				prices[a] *= 1 + ret
			}
			obs[a] = Observation{
				Price:  prices[a],
				Return: ret,
				Volume: 1e5 * (0.5 + rng.Float64()),
			}
		}
		snaps = append(snaps, Snapshot{Time: cfg.Start.Add(time.Duration(i) * cfg.Step), Obs: obs})
	}

	return NewSeries(snaps)
}
