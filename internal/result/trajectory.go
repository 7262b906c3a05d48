// Package result holds the recorded trajectory of a backtest run and
// the read-only performance statistics derived from it.
package result

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/optfolio/optfolio/internal/core"
)

// Record is one simulated step's outcome.
type Record struct {
	Time            time.Time        `json:"time"`
	Holdings        core.Holdings    `json:"holdings"`
	Trade           core.TradeVector `json:"trade"`
	TransactionCost float64          `json:"transaction_cost"`
	HoldingCost     float64          `json:"holding_cost"`
	Return          float64          `json:"return"`      // Realized post-cost portfolio return over the step
	Value           float64          `json:"value"`       // Post-step portfolio value
	TradeValue      float64          `json:"trade_value"` // Sum of absolute dollar trades
	Infeasible      bool             `json:"infeasible"`  // Policy fell back to holding this step
}

// Trajectory is the append-only record of a single backtest. It is
// owned by the simulator while running and handed to this package's
// statistics once finalized; Append fails after Finalize.
type Trajectory struct {
	id           string
	policy       string
	initialValue float64
	records      []Record
	finalized    bool
}

// NewTrajectory starts an empty trajectory for a run of the named
// policy from the given initial portfolio value.
func NewTrajectory(policy string, initialValue float64) *Trajectory {
	return &Trajectory{
		id:           uuid.NewString(),
		policy:       policy,
		initialValue: initialValue,
	}
}

// ID returns the unique run identifier.
func (t *Trajectory) ID() string {
	return t.id
}

// Policy returns the policy name the trajectory was produced by.
func (t *Trajectory) Policy() string {
	return t.policy
}

// InitialValue returns the portfolio value before the first step.
func (t *Trajectory) InitialValue() float64 {
	return t.initialValue
}

// Len returns the number of recorded steps.
func (t *Trajectory) Len() int {
	return len(t.records)
}

// Append adds one step record. Records must arrive in chronological
// order and appending to a finalized trajectory is an error.
func (t *Trajectory) Append(r Record) error {
	if t.finalized {
		return fmt.Errorf("trajectory %s is finalized", t.id)
	}
	if n := len(t.records); n > 0 && !r.Time.After(t.records[n-1].Time) {
		return fmt.Errorf("record at %s not after previous record at %s",
			r.Time.Format(time.RFC3339), t.records[n-1].Time.Format(time.RFC3339))
	}
	t.records = append(t.records, r)
	return nil
}

// Finalize freezes the trajectory. Idempotent.
func (t *Trajectory) Finalize() {
	t.finalized = true
}

// Finalized reports whether the trajectory is frozen.
func (t *Trajectory) Finalized() bool {
	return t.finalized
}

// Records returns a copy of the step records.
func (t *Trajectory) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// At returns record i without copying the slice.
func (t *Trajectory) At(i int) Record {
	return t.records[i]
}

// InfeasibleSteps counts the steps where the policy fell back to hold.
func (t *Trajectory) InfeasibleSteps() int {
	var n int
	for _, r := range t.records {
		if r.Infeasible {
			n++
		}
	}
	return n
}
