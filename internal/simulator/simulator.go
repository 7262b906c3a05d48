// Package simulator advances portfolio state day by day: it queries the
// policy, applies costs, updates holdings and records the trajectory.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/cost"
	"github.com/optfolio/optfolio/internal/market"
	"github.com/optfolio/optfolio/internal/metrics"
	"github.com/optfolio/optfolio/internal/policy"
	"github.com/optfolio/optfolio/internal/result"
)

// FallbackMode selects the behavior when a step's policy optimization
// is infeasible.
type FallbackMode string

const (
	// FallbackAbort fails the whole run on the first infeasible step.
	FallbackAbort FallbackMode = "abort"

	// FallbackHold keeps the prior allocation for the step, flags the
	// record and continues.
	FallbackHold FallbackMode = "hold"
)

// Config holds the simulation settings.
type Config struct {
	// Lookback is the window length handed to the policy, raised to the
	// policy's own minimum when smaller.
	Lookback int

	// OnInfeasible selects the per-step fallback; default FallbackAbort.
	OnInfeasible FallbackMode

	// AllowShortCash permits a negative cash balance (leverage).
	AllowShortCash bool

	// Tolerance is the self-financing tolerance relative to portfolio
	// value; default 1e-6.
	Tolerance float64
}

// Simulator runs backtests over a market series.
type Simulator struct {
	series *market.Series
	costs  cost.Model
	cfg    Config
	logger *zap.Logger
	reg    *metrics.Registry
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Simulator) { s.reg = r }
}

// New creates a Simulator. A nil cost model means free trading.
func New(series *market.Series, costs cost.Model, cfg Config, opts ...Option) *Simulator {
	if costs == nil {
		costs = cost.Zero{}
	}
	if cfg.OnInfeasible == "" {
		cfg.OnInfeasible = FallbackAbort
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-6
	}

	s := &Simulator{
		series: series,
		costs:  costs,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run simulates the policy from start to end. Each trading step decides
// at one snapshot, executes at its prices and realizes the following
// snapshot's returns; end is the final valuation date. The returned
// trajectory is finalized, with exactly one record per step in
// chronological order. The policy's hyperparameters are never mutated.
func (s *Simulator) Run(ctx context.Context, pol policy.Policy, initial core.Holdings, start, end time.Time) (*result.Trajectory, error) {
	began := time.Now()
	traj, err := s.run(ctx, pol, initial, start, end)

	if s.reg != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.reg.RecordBacktest(status, time.Since(began).Seconds())
	}
	return traj, err
}

func (s *Simulator) run(ctx context.Context, pol policy.Policy, initial core.Holdings, start, end time.Time) (*result.Trajectory, error) {
	universe := s.series.Assets()
	holdings, err := s.normalize(initial, universe)
	if err != nil {
		return nil, err
	}

	first := s.series.IndexAtOrAfter(start)
	last := s.series.IndexAtOrAfter(end)
	if last >= s.series.Len() || !s.series.Time(last).Equal(end) {
		last--
	}
	// The final snapshot only values the portfolio; the last decision
	// happens one period earlier.
	if first >= last {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("series has no simulatable steps in [%s, %s]",
				start.Format("2006-01-02"), end.Format("2006-01-02")))
	}

	lookback := s.cfg.Lookback
	if pol.MinHistory() > lookback {
		lookback = pol.MinHistory()
	}

	startWindow, err := s.series.Window(first, lookback)
	if err != nil {
		return nil, err
	}
	value := holdings.Value(startWindow.Prices())

	traj := result.NewTrajectory(pol.Name(), value)
	log := s.logger.With(zap.String("run_id", traj.ID()), zap.String("policy", pol.Name()))
	log.Debug("starting backtest",
		zap.Time("start", s.series.Time(first)),
		zap.Time("end", s.series.Time(last)),
		zap.Int("steps", last-first),
		zap.Float64("initial_value", value),
	)

	for i := first; i < last; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		window, err := s.series.Window(i, lookback)
		if err != nil {
			return nil, err
		}
		stepTime := window.Now()
		prices := window.Prices()
		preValue := holdings.Value(prices)

		trade, infeasible, err := s.decide(ctx, pol, holdings, window)
		if err != nil {
			return nil, err
		}
		if s.reg != nil && infeasible {
			s.reg.RecordInfeasibleStep(pol.Name())
		}

		postTrade := applyTrade(holdings, trade)
		txn, hold, err := cost.Evaluate(s.costs, trade, postTrade, window)
		if err != nil {
			return nil, err
		}

		cashflow := trade.Cashflow(prices)
		postTrade[core.CashKey] += cashflow - txn - hold

		if err := s.checkConstraints(postTrade, prices, txn, hold, preValue, stepTime); err != nil {
			return nil, err
		}
		holdings = postTrade

		// Realize the next period's market returns; quantities are
		// unchanged, prices move.
		nextPrices := make(map[string]float64, len(universe))
		next := s.series.At(i + 1)
		for _, a := range universe {
			nextPrices[a] = next.Obs[a].Price
		}
		newValue := holdings.Value(nextPrices)

		// Return on the pre-trade value, so the costs paid this step
		// show up in the return series and the compounded returns
		// reproduce final/initial value.
		stepReturn := 0.0
		if preValue > 0 {
			stepReturn = newValue/preValue - 1
		}

		var tradeValue float64
		for a, qty := range trade {
			tradeValue += math.Abs(prices[a] * qty)
		}

		rec := result.Record{
			Time:            stepTime,
			Holdings:        holdings.Clone(),
			Trade:           trade.Clone(),
			TransactionCost: txn,
			HoldingCost:     hold,
			Return:          stepReturn,
			Value:           newValue,
			TradeValue:      tradeValue,
			Infeasible:      infeasible,
		}
		if err := traj.Append(rec); err != nil {
			return nil, err
		}
		if s.reg != nil {
			s.reg.RecordStep(pol.Name())
		}
	}

	traj.Finalize()
	log.Info("backtest complete",
		zap.Int("steps", traj.Len()),
		zap.Int("infeasible_steps", traj.InfeasibleSteps()),
		zap.Float64("final_value", traj.At(traj.Len()-1).Value),
	)
	return traj, nil
}

// normalize clones the initial holdings, zero-filling assets absent
// from the map. Non-finite quantities or positions in assets the series
// does not cover are rejected.
func (s *Simulator) normalize(initial core.Holdings, universe []string) (core.Holdings, error) {
	if !initial.IsValid() {
		return nil, core.WrapError(core.ErrConstraintViolation,
			fmt.Errorf("initial holdings must include a cash entry with finite quantities"))
	}

	known := make(map[string]bool, len(universe)+1)
	known[core.CashKey] = true
	for _, a := range universe {
		known[a] = true
	}
	for a := range initial {
		if !known[a] {
			return nil, core.WrapError(core.ErrConstraintViolation,
				fmt.Errorf("initial holdings reference %s, not in the series universe", a))
		}
	}

	holdings := initial.Clone()
	for _, a := range universe {
		if _, ok := holdings[a]; !ok {
			holdings[a] = 0
		}
	}
	return holdings, nil
}

// decide queries the policy, applying the configured infeasibility
// fallback. Only policy infeasibility is recoverable; anything else is
// fatal for the run.
func (s *Simulator) decide(ctx context.Context, pol policy.Policy, h core.Holdings, w *market.Window) (core.TradeVector, bool, error) {
	trade, err := pol.Trade(ctx, h.Clone(), w)
	if err == nil {
		return trade, false, nil
	}

	if !errors.Is(err, core.ErrPolicyInfeasible) {
		return nil, false, err
	}

	switch s.cfg.OnInfeasible {
	case FallbackHold:
		s.logger.Warn("infeasible step, holding prior allocation",
			zap.String("policy", pol.Name()),
			zap.Time("step", w.Now()),
			zap.Error(err),
		)
		return core.TradeVector{}, true, nil
	default:
		return nil, false, core.WrapError(core.ErrPolicyInfeasible,
			fmt.Errorf("aborting run at %s: %w", w.Now().Format("2006-01-02"), err))
	}
}

func (s *Simulator) checkConstraints(post core.Holdings, prices map[string]float64, txn, hold, preValue float64, stepTime time.Time) error {
	tol := s.cfg.Tolerance * math.Max(1, math.Abs(preValue))

	// Self-financing: trading moves value between cash and assets, so
	// at unchanged prices the portfolio can only lose what it paid in
	// costs.
	residual := post.Value(prices) - (preValue - txn - hold)
	if math.Abs(residual) > tol {
		return core.WrapError(core.ErrConstraintViolation,
			fmt.Errorf("self-financing residual %g exceeds tolerance at %s", residual, stepTime.Format("2006-01-02")))
	}

	if !s.cfg.AllowShortCash && post.Cash() < -tol {
		return core.WrapError(core.ErrConstraintViolation,
			fmt.Errorf("negative cash %g without leverage at %s", post.Cash(), stepTime.Format("2006-01-02")))
	}

	for a, qty := range post {
		if math.IsNaN(qty) || math.IsInf(qty, 0) {
			return core.WrapError(core.ErrConstraintViolation,
				fmt.Errorf("non-finite quantity for %s at %s", a, stepTime.Format("2006-01-02")))
		}
	}
	return nil
}

func applyTrade(h core.Holdings, trade core.TradeVector) core.Holdings {
	out := h.Clone()
	for a, qty := range trade {
		out[a] += qty
	}
	return out
}
