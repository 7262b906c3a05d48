package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/policy"
	"github.com/optfolio/optfolio/internal/result"
	"github.com/optfolio/optfolio/internal/tuner"
)

var (
	tuneFrom string
	tuneTo   string
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search policy hyperparameters for the best objective",
	Long: `Run a coordinate search over the configured policy's hyperparameters,
scoring each candidate with a full backtest, then report and archive
the best configuration's run.`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&tuneFrom, "from", "", "Start date YYYY-MM-DD (defaults to config or series start)")
	tuneCmd.Flags().StringVar(&tuneTo, "to", "", "End date YYYY-MM-DD (defaults to config or series end)")

	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	series, err := buildSeries(cfg)
	if err != nil {
		return fmt.Errorf("loading market data: %w", err)
	}

	pol, err := buildPolicy(cfg)
	if err != nil {
		return err
	}
	tunable, ok := pol.(policy.Tunable)
	if !ok {
		return fmt.Errorf("policy %s has no tunable hyperparameters", pol.Name())
	}

	start, end, err := dateRange(cfg, series, tuneFrom, tuneTo)
	if err != nil {
		return err
	}

	reg := startMetrics(cfg, log)
	sim := buildSimulator(cfg, series, log, reg)
	initial := core.Holdings{core.CashKey: cfg.Simulation.InitialCash}

	run := func(ctx context.Context, p policy.Policy) (*result.Result, error) {
		traj, err := sim.Run(ctx, p, initial, start, end)
		if err != nil {
			return nil, err
		}
		return result.Compute(traj, cfg.Simulation.PeriodsPerYear)
	}

	var objective tuner.Objective
	switch cfg.Tuner.Objective {
	case "growth":
		objective = tuner.GrowthObjective
	case "profit":
		objective = tuner.ProfitObjective
	default:
		objective = tuner.SharpeObjective
	}

	opts := []tuner.Option{tuner.WithLogger(log)}
	if reg != nil {
		opts = append(opts, tuner.WithMetrics(reg))
	}
	search := tuner.New(tuner.Config{
		MaxRounds: cfg.Tuner.MaxRounds,
		Workers:   cfg.Tuner.Workers,
	}, opts...)

	best, report, err := search.Optimize(ctx, tunable, objective, run)
	if err != nil {
		return fmt.Errorf("tuning failed: %w", err)
	}

	fmt.Println("=== Tuning Result ===")
	fmt.Printf("Policy:       %s\n", best.Name())
	fmt.Printf("Objective:    %s\n", cfg.Tuner.Objective)
	fmt.Printf("Best score:   %.4f\n", report.Score)
	fmt.Printf("Rounds:       %d (%d evaluations)\n", report.Rounds, len(report.Evaluations))
	names := make([]string, 0, len(report.Best))
	for name := range report.Best {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-14s %g\n", name, report.Best[name])
	}

	// Rerun the winner so the archived trajectory matches the reported
	// parameters.
	runs, err := buildArchive(cfg)
	if err != nil {
		return err
	}
	if runs != nil {
		traj, err := sim.Run(ctx, best, initial, start, end)
		if err != nil {
			return fmt.Errorf("rerunning best candidate: %w", err)
		}
		res, err := result.Compute(traj, cfg.Simulation.PeriodsPerYear)
		if err != nil {
			return err
		}
		if err := runs.SaveResult(ctx, res); err != nil {
			return fmt.Errorf("archiving result: %w", err)
		}
		if err := runs.SaveTrajectory(ctx, traj); err != nil {
			return fmt.Errorf("archiving trajectory: %w", err)
		}
		log.Info("archived best run", zap.String("run_id", res.RunID))
	}

	return nil
}
