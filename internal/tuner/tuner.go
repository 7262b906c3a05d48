// Package tuner searches policy hyperparameters by greedy coordinate
// steps, evaluating candidates with full backtest runs.
package tuner

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/metrics"
	"github.com/optfolio/optfolio/internal/policy"
	"github.com/optfolio/optfolio/internal/result"
)

// Objective scores a finished backtest; higher is better.
type Objective func(*result.Result) float64

// SharpeObjective maximizes the annualized Sharpe ratio.
func SharpeObjective(r *result.Result) float64 { return r.Sharpe }

// GrowthObjective maximizes the annualized growth rate.
func GrowthObjective(r *result.Result) float64 { return r.GrowthRate }

// ProfitObjective maximizes absolute profit.
func ProfitObjective(r *result.Result) float64 { return r.FinalValue - r.InitialValue }

// RunFunc executes one backtest for a candidate policy and summarizes
// it. It must be safe for concurrent calls with distinct policies.
type RunFunc func(ctx context.Context, pol policy.Policy) (*result.Result, error)

// zeroEscapeStep is proposed for a multiplicative hyperparameter stuck
// at zero, where halving and doubling cannot move it.
const zeroEscapeStep = 1e-3

// Config holds the search settings.
type Config struct {
	// MaxRounds caps the number of coordinate sweeps; default 20.
	MaxRounds int

	// Workers bounds concurrent candidate evaluations; default NumCPU.
	Workers int
}

// Evaluation records one scored candidate.
type Evaluation struct {
	ID     string             `json:"id"`
	Params map[string]float64 `json:"params"`
	Score  float64            `json:"score"`
	Err    error              `json:"-"`
}

// Report summarizes a finished search.
type Report struct {
	Best        map[string]float64 `json:"best"`
	Score       float64            `json:"score"`
	Rounds      int                `json:"rounds"`
	Evaluations []Evaluation       `json:"evaluations"`
}

// Tuner runs the coordinate search.
type Tuner struct {
	cfg    Config
	logger *zap.Logger
	reg    *metrics.Registry
}

// Option configures a Tuner.
type Option func(*Tuner)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tuner) { t.logger = l }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(r *metrics.Registry) Option {
	return func(t *Tuner) { t.reg = r }
}

// New creates a Tuner.
func New(cfg Config, opts ...Option) *Tuner {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	t := &Tuner{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Optimize searches the policy's hyperparameters for the best objective
// value. Each round proposes halved and doubled values of every
// parameter (plus and minus one period for the planning horizon, a
// small additive step for a parameter at zero),
// evaluates all candidates concurrently on independent clones, and
// moves to the best strict improvement. It stops when a round yields no
// improvement or MaxRounds is reached. The input policy is never
// mutated; the returned clone carries the best parameters found.
func (t *Tuner) Optimize(ctx context.Context, pol policy.Tunable, objective Objective, run RunFunc) (policy.Tunable, *Report, error) {
	names := pol.Hyperparameters()
	if len(names) == 0 {
		return nil, nil, core.WrapError(core.ErrOptimizationFailed,
			fmt.Errorf("policy %s exposes no hyperparameters", pol.Name()))
	}

	best := pol.Clone()
	report := &Report{}

	baseline := t.evaluate(ctx, []policy.Tunable{best}, objective, run)[0]
	report.Evaluations = append(report.Evaluations, baseline)
	bestScore := baseline.Score

	for round := 0; round < t.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		candidates, err := propose(best, names)
		if err != nil {
			return nil, nil, err
		}

		evals := t.evaluate(ctx, candidates, objective, run)
		report.Evaluations = append(report.Evaluations, evals...)
		report.Rounds = round + 1

		// First strict improvement in proposal order wins ties.
		improved := -1
		for i, ev := range evals {
			if ev.Err == nil && ev.Score > bestScore && (improved < 0 || ev.Score > evals[improved].Score) {
				improved = i
			}
		}
		if improved < 0 {
			break
		}

		best = candidates[improved]
		bestScore = evals[improved].Score
		t.logger.Debug("tuner moved",
			zap.Int("round", round),
			zap.Float64("score", bestScore),
			zap.Any("params", evals[improved].Params),
		)
	}

	if math.IsInf(bestScore, -1) {
		return nil, nil, core.WrapError(core.ErrOptimizationFailed,
			fmt.Errorf("no candidate produced a scorable backtest"))
	}

	report.Best = params(best, names)
	report.Score = bestScore
	t.logger.Info("tuner finished",
		zap.String("policy", pol.Name()),
		zap.Float64("score", bestScore),
		zap.Int("rounds", report.Rounds),
		zap.Int("evaluations", len(report.Evaluations)),
	)
	return best, report, nil
}

// propose builds one clone per coordinate move around the current best.
func propose(best policy.Tunable, names []string) ([]policy.Tunable, error) {
	var out []policy.Tunable
	for _, name := range names {
		v, err := best.Hyperparameter(name)
		if err != nil {
			return nil, err
		}

		var moves []float64
		switch {
		case name == policy.ParamHorizon:
			if v > 1 {
				moves = append(moves, v-1)
			}
			moves = append(moves, v+1)
		case v == 0:
			// Halving and doubling are both stuck at zero, so step
			// off additively.
			moves = []float64{zeroEscapeStep}
		default:
			moves = []float64{v * 0.5, v * 2}
		}

		for _, m := range moves {
			c := best.Clone()
			if err := c.SetHyperparameter(name, m); err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// evaluate scores candidates concurrently. A failed run scores -Inf so
// the search simply never moves there.
func (t *Tuner) evaluate(ctx context.Context, candidates []policy.Tunable, objective Objective, run RunFunc) []Evaluation {
	evals := make([]Evaluation, len(candidates))
	sem := make(chan struct{}, t.cfg.Workers)
	var wg sync.WaitGroup

	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand policy.Tunable) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ev := Evaluation{
				ID:     uuid.NewString(),
				Params: params(cand, cand.Hyperparameters()),
			}
			res, err := run(ctx, cand)
			if err != nil {
				ev.Score = math.Inf(-1)
				ev.Err = err
				t.logger.Debug("candidate failed",
					zap.String("eval_id", ev.ID),
					zap.Any("params", ev.Params),
					zap.Error(err),
				)
			} else {
				ev.Score = objective(res)
				if math.IsNaN(ev.Score) {
					ev.Score = math.Inf(-1)
				}
			}
			if t.reg != nil {
				status := "ok"
				if ev.Err != nil {
					status = "error"
				}
				t.reg.RecordTunerEvaluation(status)
			}
			evals[i] = ev
		}(i, cand)
	}
	wg.Wait()
	return evals
}

func params(pol policy.Tunable, names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, name := range names {
		if v, err := pol.Hyperparameter(name); err == nil {
			out[name] = v
		}
	}
	return out
}
