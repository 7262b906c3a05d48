package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/result"
)

func TestRuns_SaveLoadResult(t *testing.T) {
	runs := NewRuns(NewMemory())
	ctx := context.Background()

	res := &result.Result{
		RunID:            "run-1",
		Policy:           "spo",
		Periods:          250,
		PeriodsPerYear:   252,
		InitialValue:     1e6,
		FinalValue:       1.1e6,
		CumulativeReturn: 0.1,
		Sharpe:           1.3,
	}
	require.NoError(t, runs.SaveResult(ctx, res))

	got, err := runs.LoadResult(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestRuns_LoadMissing(t *testing.T) {
	runs := NewRuns(NewMemory())
	_, err := runs.LoadResult(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRuns_SaveTrajectory(t *testing.T) {
	store := NewMemory()
	runs := NewRuns(store)
	ctx := context.Background()

	traj := result.NewTrajectory("uniform", 1000)
	rec := result.Record{
		Time:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Holdings: core.Holdings{core.CashKey: 0, "AAA": 100},
		Trade:    core.TradeVector{"AAA": 100},
		Value:    1000,
	}
	require.NoError(t, traj.Append(rec))
	traj.Finalize()

	require.NoError(t, runs.SaveTrajectory(ctx, traj))

	exists, err := store.Exists(ctx, trajectoryPath(traj.ID()))
	require.NoError(t, err)
	assert.True(t, exists, "expected trajectory document to be stored")
}

func TestRuns_List(t *testing.T) {
	runs := NewRuns(NewMemory())
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha"} {
		require.NoError(t, runs.SaveResult(ctx, &result.Result{RunID: id}))
	}

	ids, err := runs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
}
