package policy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/cost"
	"github.com/optfolio/optfolio/internal/market"
	"github.com/optfolio/optfolio/internal/risk"
	"github.com/optfolio/optfolio/internal/solver"
)

func testWindow(t *testing.T, periods int) *market.Window {
	t.Helper()

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	snaps := make([]market.Snapshot, periods)
	for i := 0; i < periods; i++ {
		r := 0.01 * math.Sin(float64(i))
		snaps[i] = market.Snapshot{
			Time: start.AddDate(0, 0, i),
			Obs: map[string]market.Observation{
				"AAA": {Price: 100, Return: r, Volume: 1e4},
				"BBB": {Price: 50, Return: -r / 2, Volume: 2e4},
				"CCC": {Price: 20, Return: r / 3, Volume: 5e4},
			},
		}
	}

	s, err := market.NewSeries(snaps)
	if err != nil {
		t.Fatal(err)
	}
	w, err := s.Window(periods-1, periods)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

// stubSolver returns a canned solution regardless of the problem.
type stubSolver struct {
	status  solver.Status
	weights []float64
	err     error
}

func (s *stubSolver) Solve(_ context.Context, p *solver.Problem) (*solver.Solution, error) {
	if s.err != nil {
		return &solver.Solution{Status: solver.StatusError}, s.err
	}
	w := make([][]float64, len(p.Stages))
	for i := range w {
		w[i] = s.weights
	}
	return &solver.Solution{Status: s.status, Weights: w}, nil
}

func TestUniformEqualWeights(t *testing.T) {
	w := testWindow(t, 5)
	h := core.Holdings{"AAA": 3, "BBB": 0, "CCC": 50, core.CashKey: 200}
	prices := w.Prices()
	value := h.Value(prices)

	trade, err := NewUniform().Trade(context.Background(), h, w)
	if err != nil {
		t.Fatalf("Trade() error = %v", err)
	}

	// Post-trade weights must be equal on all non-cash assets.
	for _, a := range w.Assets() {
		postValue := prices[a] * (h[a] + trade[a])
		weight := postValue / value
		if math.Abs(weight-1.0/3) > 1e-9 {
			t.Errorf("post-trade weight %s = %v, want 1/3", a, weight)
		}
	}
}

func TestUniformCashWeight(t *testing.T) {
	w := testWindow(t, 3)
	h := core.Holdings{"AAA": 0, "BBB": 0, "CCC": 0, core.CashKey: 1000}
	prices := w.Prices()

	p := &Uniform{CashWeight: 0.1}
	trade, err := p.Trade(context.Background(), h, w)
	if err != nil {
		t.Fatal(err)
	}

	var invested float64
	for _, a := range w.Assets() {
		invested += prices[a] * trade[a]
	}
	if math.Abs(invested-900) > 1e-9 {
		t.Errorf("invested = %v, want 900", invested)
	}
}

func TestUniformNonPositiveValue(t *testing.T) {
	w := testWindow(t, 3)
	h := core.Holdings{"AAA": 0, "BBB": 0, "CCC": 0, core.CashKey: 0}

	_, err := NewUniform().Trade(context.Background(), h, w)
	if !errors.Is(err, core.ErrPolicyInfeasible) {
		t.Errorf("error = %v, want ErrPolicyInfeasible", err)
	}
}

func TestSPOInfeasibleSolverStatus(t *testing.T) {
	w := testWindow(t, 10)
	h := core.Holdings{"AAA": 1, "BBB": 1, "CCC": 1, core.CashKey: 100}

	p := NewSinglePeriodOpt(
		risk.NewSampleCovariance(3, 0.1),
		nil,
		&stubSolver{status: solver.StatusInfeasible},
		DefaultOptParams(),
	)

	_, err := p.Trade(context.Background(), h, w)
	if !errors.Is(err, core.ErrPolicyInfeasible) {
		t.Errorf("error = %v, want ErrPolicyInfeasible", err)
	}
}

func TestSPOSolverError(t *testing.T) {
	w := testWindow(t, 10)
	h := core.Holdings{"AAA": 1, "BBB": 1, "CCC": 1, core.CashKey: 100}

	p := NewSinglePeriodOpt(
		risk.NewSampleCovariance(3, 0.1),
		nil,
		&stubSolver{err: errors.New("solver crashed")},
		DefaultOptParams(),
	)

	_, err := p.Trade(context.Background(), h, w)
	if !errors.Is(err, core.ErrPolicyInfeasible) {
		t.Errorf("error = %v, want ErrPolicyInfeasible", err)
	}
}

func TestSPOTradeReachesTarget(t *testing.T) {
	w := testWindow(t, 10)
	h := core.Holdings{"AAA": 1, "BBB": 2, "CCC": 5, core.CashKey: 500}
	prices := w.Prices()
	value := h.Value(prices)

	// Force a known target allocation through the stub solver.
	target := []float64{0.5, 0.3, 0.1}
	p := NewSinglePeriodOpt(
		risk.NewSampleCovariance(3, 0.1),
		nil,
		&stubSolver{status: solver.StatusOptimal, weights: target},
		DefaultOptParams(),
	)

	trade, err := p.Trade(context.Background(), h, w)
	if err != nil {
		t.Fatal(err)
	}

	for i, a := range w.Assets() {
		got := prices[a] * (h[a] + trade[a]) / value
		if math.Abs(got-target[i]) > 1e-9 {
			t.Errorf("post-trade weight %s = %v, want %v", a, got, target[i])
		}
	}
}

func TestMPOHorizonOneMatchesSPO(t *testing.T) {
	w := testWindow(t, 20)
	h := core.Holdings{"AAA": 2, "BBB": 4, "CCC": 10, core.CashKey: 300}

	riskModel := risk.NewSampleCovariance(5, 0.1)
	costModel := cost.NewTransactionCost(0.001, 0.5)
	params := DefaultOptParams()

	spo := NewSinglePeriodOpt(riskModel, costModel, solver.NewProjectedGradient(), params)
	mpo := NewMultiPeriodOpt(riskModel, costModel, solver.NewProjectedGradient(), params)

	spoTrade, err := spo.Trade(context.Background(), h, w)
	if err != nil {
		t.Fatalf("spo error = %v", err)
	}
	mpoTrade, err := mpo.Trade(context.Background(), h, w)
	if err != nil {
		t.Fatalf("mpo error = %v", err)
	}

	for _, a := range w.Assets() {
		if spoTrade[a] != mpoTrade[a] {
			t.Errorf("trade %s: spo %v != mpo %v", a, spoTrade[a], mpoTrade[a])
		}
	}
}

func TestHyperparameterRoundTrip(t *testing.T) {
	p := NewMultiPeriodOpt(risk.NewSampleCovariance(3, 0.1), nil, solver.NewProjectedGradient(), DefaultOptParams())

	names := p.Hyperparameters()
	want := []string{ParamRiskAversion, ParamCostAversion, ParamMaxLeverage, ParamHorizon}
	if len(names) != len(want) {
		t.Fatalf("Hyperparameters() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Hyperparameters()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	if err := p.SetHyperparameter(ParamRiskAversion, 7.5); err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Hyperparameter(ParamRiskAversion); got != 7.5 {
		t.Errorf("risk_aversion = %v, want 7.5", got)
	}

	if err := p.SetHyperparameter(ParamHorizon, 3.2); err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Hyperparameter(ParamHorizon); got != 3 {
		t.Errorf("horizon = %v, want 3 (rounded)", got)
	}

	if err := p.SetHyperparameter("nope", 1); err == nil {
		t.Error("expected error for unknown hyperparameter")
	}
	if err := p.SetHyperparameter(ParamHorizon, 0); err == nil {
		t.Error("expected error for horizon < 1")
	}
	if err := p.SetHyperparameter(ParamRiskAversion, -1); err == nil {
		t.Error("expected error for negative value")
	}
}

func TestCloneIndependent(t *testing.T) {
	p := NewSinglePeriodOpt(risk.NewSampleCovariance(3, 0.1), nil, solver.NewProjectedGradient(), DefaultOptParams())

	c := p.Clone()
	if err := c.SetHyperparameter(ParamRiskAversion, 99); err != nil {
		t.Fatal(err)
	}

	if got, _ := p.Hyperparameter(ParamRiskAversion); got == 99 {
		t.Error("Clone() shares hyperparameter state")
	}
}
