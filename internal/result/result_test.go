package result

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/optfolio/optfolio/internal/core"
)

func testTrajectory(t *testing.T, returns []float64) *Trajectory {
	t.Helper()

	traj := NewTrajectory("test", 1000)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	value := 1000.0
	for i, r := range returns {
		value *= 1 + r
		rec := Record{
			Time:       start.AddDate(0, 0, i),
			Holdings:   core.Holdings{"AAA": 1, core.CashKey: 0},
			Trade:      core.TradeVector{"AAA": 0},
			Return:     r,
			Value:      value,
			TradeValue: 10,
		}
		if err := traj.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
	traj.Finalize()
	return traj
}

func TestAppendOrdering(t *testing.T) {
	traj := NewTrajectory("test", 1000)
	now := time.Now()

	if err := traj.Append(Record{Time: now}); err != nil {
		t.Fatal(err)
	}
	if err := traj.Append(Record{Time: now}); err == nil {
		t.Error("expected error for non-increasing timestamp")
	}
	if err := traj.Append(Record{Time: now.Add(-time.Hour)}); err == nil {
		t.Error("expected error for out-of-order timestamp")
	}
}

func TestAppendAfterFinalize(t *testing.T) {
	traj := NewTrajectory("test", 1000)
	traj.Finalize()

	if err := traj.Append(Record{Time: time.Now()}); err == nil {
		t.Error("expected error appending to finalized trajectory")
	}
}

func TestComputeRequiresFinalized(t *testing.T) {
	traj := NewTrajectory("test", 1000)
	if err := traj.Append(Record{Time: time.Now(), Value: 1000}); err != nil {
		t.Fatal(err)
	}

	if _, err := Compute(traj, 252); err == nil {
		t.Error("expected error for unfinalized trajectory")
	}
}

func TestComputeEmptyTrajectory(t *testing.T) {
	traj := NewTrajectory("test", 1000)
	traj.Finalize()

	if _, err := Compute(traj, 252); err == nil {
		t.Error("expected error for empty trajectory")
	}
}

func TestComputeCumulativeReturn(t *testing.T) {
	traj := testTrajectory(t, []float64{0.1, -0.05, 0.02})

	res, err := Compute(traj, 252)
	if err != nil {
		t.Fatal(err)
	}

	want := 1.1*0.95*1.02 - 1
	if math.Abs(res.CumulativeReturn-want) > 1e-12 {
		t.Errorf("CumulativeReturn = %v, want %v", res.CumulativeReturn, want)
	}
	if res.Periods != 3 {
		t.Errorf("Periods = %d, want 3", res.Periods)
	}
}

func TestComputeIdempotent(t *testing.T) {
	traj := testTrajectory(t, []float64{0.01, -0.02, 0.015, 0.003, -0.007})

	a, err := Compute(traj, 252)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(traj, 252)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("recomputed statistics differ (-first +second):\n%s", diff)
	}
}

func TestComputeBounds(t *testing.T) {
	cases := [][]float64{
		{0.1, 0.2, 0.3},
		{-0.1, -0.2, -0.3},
		{0.05, -0.5, 0.4, -0.9},
		{0, 0, 0},
	}

	for _, returns := range cases {
		res, err := Compute(testTrajectory(t, returns), 252)
		if err != nil {
			t.Fatal(err)
		}
		if res.Turnover < 0 {
			t.Errorf("returns %v: Turnover = %v, want >= 0", returns, res.Turnover)
		}
		if res.MaxDrawdown < 0 || res.MaxDrawdown > 1 {
			t.Errorf("returns %v: MaxDrawdown = %v, want in [0,1]", returns, res.MaxDrawdown)
		}
	}
}

func TestMaxDrawdownKnownValue(t *testing.T) {
	// Wealth: 1.10, 1.155, 0.924, 1.0164. Peak 1.155, trough 0.924.
	dd := maxDrawdown([]float64{0.10, 0.05, -0.20, 0.10})
	if math.Abs(dd-0.20) > 1e-12 {
		t.Errorf("maxDrawdown = %v, want 0.20", dd)
	}
}

func TestSharpeZeroVariance(t *testing.T) {
	if got := sharpe([]float64{0.01, 0.01, 0.01}, 252); got != 0 {
		t.Errorf("sharpe(constant) = %v, want 0", got)
	}
	if got := sharpe([]float64{0.01}, 252); got != 0 {
		t.Errorf("sharpe(single) = %v, want 0", got)
	}
}

func TestSharpeSign(t *testing.T) {
	pos := sharpe([]float64{0.01, 0.02, 0.005, 0.015}, 252)
	if pos <= 0 {
		t.Errorf("sharpe(positive returns) = %v, want > 0", pos)
	}
	neg := sharpe([]float64{-0.01, -0.02, -0.005, -0.015}, 252)
	if neg >= 0 {
		t.Errorf("sharpe(negative returns) = %v, want < 0", neg)
	}
}

func TestGrowthRateAnnualization(t *testing.T) {
	// Constant per-period return r over ppy periods annualizes to
	// (1+r)^ppy - 1.
	got := growthRate([]float64{0.001, 0.001}, 252)
	want := math.Pow(1.001, 252) - 1
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("growthRate = %v, want %v", got, want)
	}

	if got := growthRate([]float64{-1}, 252); got != -1 {
		t.Errorf("growthRate(total loss) = %v, want -1", got)
	}
}

func TestInfeasibleStepsCounted(t *testing.T) {
	traj := NewTrajectory("test", 1000)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		rec := Record{Time: start.AddDate(0, 0, i), Value: 1000, Infeasible: i%2 == 0}
		if err := traj.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
	traj.Finalize()

	res, err := Compute(traj, 252)
	if err != nil {
		t.Fatal(err)
	}
	if res.InfeasibleSteps != 2 {
		t.Errorf("InfeasibleSteps = %d, want 2", res.InfeasibleSteps)
	}
}
