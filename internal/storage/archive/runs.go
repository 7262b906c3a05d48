package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/optfolio/optfolio/internal/result"
)

const runsPrefix = "runs"

// Runs persists backtest outcomes as JSON documents keyed by run ID.
type Runs struct {
	store Storage
}

// NewRuns wraps a storage backend.
func NewRuns(store Storage) *Runs {
	return &Runs{store: store}
}

func resultPath(id string) string {
	return path.Join(runsPrefix, id, "result.json")
}

func trajectoryPath(id string) string {
	return path.Join(runsPrefix, id, "trajectory.json")
}

// SaveResult stores the summary statistics of a run.
func (r *Runs) SaveResult(ctx context.Context, res *result.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return r.store.Write(ctx, resultPath(res.RunID), data)
}

// LoadResult retrieves the summary statistics of a run.
func (r *Runs) LoadResult(ctx context.Context, id string) (*result.Result, error) {
	data, err := r.store.Read(ctx, resultPath(id))
	if err != nil {
		return nil, err
	}
	var res result.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding result %s: %w", id, err)
	}
	return &res, nil
}

type trajectoryDoc struct {
	RunID        string          `json:"run_id"`
	Policy       string          `json:"policy"`
	InitialValue float64         `json:"initial_value"`
	Records      []result.Record `json:"records"`
}

// SaveTrajectory stores the full per-step history of a run.
func (r *Runs) SaveTrajectory(ctx context.Context, traj *result.Trajectory) error {
	doc := trajectoryDoc{
		RunID:        traj.ID(),
		Policy:       traj.Policy(),
		InitialValue: traj.InitialValue(),
		Records:      traj.Records(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding trajectory: %w", err)
	}
	return r.store.Write(ctx, trajectoryPath(traj.ID()), data)
}

// List returns the IDs of all archived runs, sorted.
func (r *Runs) List(ctx context.Context) ([]string, error) {
	paths, err := r.store.List(ctx, runsPrefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, p := range paths {
		// runs/<id>/result.json
		dir, file := path.Split(path.Clean(p))
		if file != "result.json" {
			continue
		}
		id := path.Base(path.Clean(dir))
		if id != "" && id != "." && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
