package result

import (
	"fmt"
	"math"
)

// Result holds the derived performance statistics of one backtest run.
// All fields are pure functions of the trajectory: recomputing from the
// same trajectory yields identical values.
type Result struct {
	RunID          string    `json:"run_id"`
	Policy         string    `json:"policy"`
	Periods        int       `json:"periods"`
	PeriodsPerYear float64   `json:"periods_per_year"`
	InitialValue   float64   `json:"initial_value"`
	FinalValue     float64   `json:"final_value"`
	Returns        []float64 `json:"returns"` // Per-period post-cost returns

	CumulativeReturn float64 `json:"cumulative_return"`
	GrowthRate       float64 `json:"growth_rate"` // Annualized geometric mean return
	Sharpe           float64 `json:"sharpe"`      // Annualized, zero risk-free rate
	MaxDrawdown      float64 `json:"max_drawdown"`
	Turnover         float64 `json:"turnover"`  // Mean per-period |trades| / value
	CostDrag         float64 `json:"cost_drag"` // Total costs / initial value
	InfeasibleSteps  int     `json:"infeasible_steps"`
}

// Compute derives the statistics from a finalized trajectory.
func Compute(t *Trajectory, periodsPerYear float64) (*Result, error) {
	if !t.Finalized() {
		return nil, fmt.Errorf("trajectory %s not finalized", t.ID())
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("trajectory %s is empty", t.ID())
	}
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}

	records := t.Records()
	returns := make([]float64, len(records))
	var totalCosts, totalTurnover float64
	for i, r := range records {
		returns[i] = r.Return
		totalCosts += r.TransactionCost + r.HoldingCost
		if r.Value > 0 {
			totalTurnover += r.TradeValue / r.Value
		}
	}

	final := records[len(records)-1].Value

	res := &Result{
		RunID:          t.ID(),
		Policy:         t.Policy(),
		Periods:        len(records),
		PeriodsPerYear: periodsPerYear,
		InitialValue:   t.InitialValue(),
		FinalValue:     final,
		Returns:        returns,

		Sharpe:          sharpe(returns, periodsPerYear),
		MaxDrawdown:     maxDrawdown(returns),
		Turnover:        totalTurnover / float64(len(records)),
		InfeasibleSteps: t.InfeasibleSteps(),
	}
	if t.InitialValue() > 0 {
		res.CumulativeReturn = final/t.InitialValue() - 1
		res.CostDrag = totalCosts / t.InitialValue()
	}
	res.GrowthRate = growthRate(returns, periodsPerYear)

	return res, nil
}

// sharpe is the annualized ratio of mean to standard deviation of the
// per-period returns, with a zero risk-free rate.
func sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(periodsPerYear)
}

// growthRate is the annualized geometric mean of per-period returns.
// A period at or below -100% pins the growth rate to -1.
func growthRate(returns []float64, periodsPerYear float64) float64 {
	logSum := 0.0
	for _, r := range returns {
		if r <= -1 {
			return -1
		}
		logSum += math.Log1p(r)
	}
	perPeriod := logSum / float64(len(returns))
	return math.Expm1(perPeriod * periodsPerYear)
}

// maxDrawdown finds the largest peak-to-trough decline of the
// cumulative wealth curve, as a fraction in [0, 1].
func maxDrawdown(returns []float64) float64 {
	var maxDD float64
	peak := 1.0
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative < 0 {
			cumulative = 0
		}
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			dd := (peak - cumulative) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}
