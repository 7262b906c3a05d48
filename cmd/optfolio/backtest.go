package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optfolio/optfolio/internal/core"
	"github.com/optfolio/optfolio/internal/result"
)

var (
	backtestFrom string
	backtestTo   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the configured policy against historical data",
	Long:  "Simulate the configured policy over the market series and print performance statistics",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (defaults to config or series start)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (defaults to config or series end)")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
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

	start, end, err := dateRange(cfg, series, backtestFrom, backtestTo)
	if err != nil {
		return err
	}

	reg := startMetrics(cfg, log)
	sim := buildSimulator(cfg, series, log, reg)

	initial := core.Holdings{core.CashKey: cfg.Simulation.InitialCash}
	traj, err := sim.Run(ctx, pol, initial, start, end)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	res, err := result.Compute(traj, cfg.Simulation.PeriodsPerYear)
	if err != nil {
		return fmt.Errorf("computing statistics: %w", err)
	}

	printResult(res, start.Format("2006-01-02"), end.Format("2006-01-02"))

	runs, err := buildArchive(cfg)
	if err != nil {
		return err
	}
	if runs != nil {
		if err := runs.SaveResult(ctx, res); err != nil {
			return fmt.Errorf("archiving result: %w", err)
		}
		if err := runs.SaveTrajectory(ctx, traj); err != nil {
			return fmt.Errorf("archiving trajectory: %w", err)
		}
		log.Info("archived run", zap.String("run_id", res.RunID))
	}

	return nil
}

func printResult(res *result.Result, from, to string) {
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run:             %s\n", res.RunID)
	fmt.Printf("Policy:          %s\n", res.Policy)
	fmt.Printf("Period:          %s to %s (%d steps)\n", from, to, res.Periods)
	fmt.Printf("Initial value:   %.2f\n", res.InitialValue)
	fmt.Printf("Final value:     %.2f\n", res.FinalValue)
	fmt.Printf("Total return:    %.2f%%\n", 100*res.CumulativeReturn)
	fmt.Printf("Growth rate:     %.2f%% /yr\n", 100*res.GrowthRate)
	fmt.Printf("Sharpe ratio:    %.3f\n", res.Sharpe)
	fmt.Printf("Max drawdown:    %.2f%%\n", 100*res.MaxDrawdown)
	fmt.Printf("Avg turnover:    %.4f\n", res.Turnover)
	fmt.Printf("Cost drag:       %.4f\n", res.CostDrag)
	if res.InfeasibleSteps > 0 {
		fmt.Printf("Infeasible:      %d steps\n", res.InfeasibleSteps)
	}
}
