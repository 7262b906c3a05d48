package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/optfolio/optfolio/internal/config"
	"github.com/optfolio/optfolio/internal/cost"
	"github.com/optfolio/optfolio/internal/logger"
	"github.com/optfolio/optfolio/internal/market"
	"github.com/optfolio/optfolio/internal/metrics"
	"github.com/optfolio/optfolio/internal/policy"
	"github.com/optfolio/optfolio/internal/risk"
	"github.com/optfolio/optfolio/internal/simulator"
	"github.com/optfolio/optfolio/internal/solver"
	"github.com/optfolio/optfolio/internal/storage/archive"
)

// loadConfig reads the config file or falls back to defaults, and
// validates it.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	return logger.Must(level, cfg.Logging.Format)
}

// buildSeries loads the market series from the configured source.
func buildSeries(cfg *config.Config) (*market.Series, error) {
	switch cfg.Data.Source {
	case "csv":
		return market.LoadCSV(cfg.Data.Path)
	case "synthetic":
		sc := cfg.Data.Synthetic
		assets := make([]string, sc.Assets)
		for i := range assets {
			assets[i] = fmt.Sprintf("A%02d", i+1)
		}
		start := time.Time{}
		if sc.Start != "" {
			var err error
			start, err = time.Parse("2006-01-02", sc.Start)
			if err != nil {
				return nil, fmt.Errorf("invalid synthetic start date: %w", err)
			}
		}
		return market.Synthetic(market.SyntheticConfig{
			Assets:     assets,
			Periods:    sc.Periods,
			Start:      start,
			Drift:      sc.Drift,
			Volatility: sc.Volatility,
			Seed:       sc.Seed,
		})
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

func buildRiskModel(cfg *config.Config) risk.Model {
	switch cfg.Risk.Model {
	case "diagonal":
		return risk.NewDiagonalVariance(cfg.Risk.MinPeriods, cfg.Risk.Lambda)
	default:
		return risk.NewSampleCovariance(cfg.Risk.MinPeriods, cfg.Risk.Shrinkage)
	}
}

// buildCostModels returns the simulator's full cost model and the
// transaction leg the optimization policies penalize.
func buildCostModels(cfg *config.Config) (cost.Model, *cost.TransactionCost) {
	txn := &cost.TransactionCost{
		SpreadDefault: cfg.Cost.SpreadDefault,
		Spread:        cfg.Cost.Spread,
		Impact:        cfg.Cost.Impact,
		Exponent:      cfg.Cost.Exponent,
		Fixed:         cfg.Cost.Fixed,
	}

	if cfg.Cost.BorrowDefault == 0 && len(cfg.Cost.Borrow) == 0 && cfg.Cost.Dividend == 0 {
		return txn, txn
	}

	hold := &cost.HoldingCost{
		BorrowDefault: cfg.Cost.BorrowDefault,
		Borrow:        cfg.Cost.Borrow,
		Dividend:      cfg.Cost.Dividend,
	}
	return cost.Composite{txn, hold}, txn
}

func buildPolicy(cfg *config.Config) (policy.Policy, error) {
	if cfg.Policy.Type == "uniform" {
		return &policy.Uniform{CashWeight: cfg.Policy.CashWeight}, nil
	}

	params := policy.OptParams{
		RiskAversion: cfg.Policy.RiskAversion,
		CostAversion: cfg.Policy.CostAversion,
		MaxLeverage:  cfg.Policy.MaxLeverage,
		LongOnly:     cfg.Policy.LongOnly,
		Horizon:      cfg.Policy.Horizon,
	}
	solve := &solver.ProjectedGradient{
		MaxIters: cfg.Policy.Solver.MaxIters,
		StepSize: cfg.Policy.Solver.StepSize,
	}
	_, txn := buildCostModels(cfg)

	switch cfg.Policy.Type {
	case "spo":
		return policy.NewSinglePeriodOpt(buildRiskModel(cfg), txn, solve, params), nil
	case "mpo":
		return policy.NewMultiPeriodOpt(buildRiskModel(cfg), txn, solve, params), nil
	default:
		return nil, fmt.Errorf("unknown policy type %q", cfg.Policy.Type)
	}
}

func buildSimulator(cfg *config.Config, series *market.Series, log *zap.Logger, reg *metrics.Registry) *simulator.Simulator {
	costModel, _ := buildCostModels(cfg)
	opts := []simulator.Option{simulator.WithLogger(log)}
	if reg != nil {
		opts = append(opts, simulator.WithMetrics(reg))
	}
	return simulator.New(series, costModel, simulator.Config{
		Lookback:       cfg.Simulation.Lookback,
		OnInfeasible:   simulator.FallbackMode(cfg.Simulation.OnInfeasible),
		AllowShortCash: cfg.Simulation.AllowShortCash,
	}, opts...)
}

// dateRange resolves the simulation window, preferring flags over
// config over the full series span.
func dateRange(cfg *config.Config, series *market.Series, from, to string) (time.Time, time.Time, error) {
	start := series.Time(0)
	end := series.Time(series.Len() - 1)

	parse := func(s string, fallback time.Time) (time.Time, error) {
		if s == "" {
			return fallback, nil
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
		}
		return t, nil
	}

	var err error
	if start, err = parse(cfg.Simulation.Start, start); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end, err = parse(cfg.Simulation.End, end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start, err = parse(from, start); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end, err = parse(to, end); err != nil {
		return time.Time{}, time.Time{}, err
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}

// startMetrics exposes the registry over HTTP when enabled. The server
// lives for the process lifetime.
func startMetrics(cfg *config.Config, log *zap.Logger) *metrics.Registry {
	if !cfg.Metrics.Enabled {
		return nil
	}

	reg := metrics.NewRegistry()
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		log.Info("serving metrics",
			zap.String("addr", cfg.Metrics.Addr),
			zap.String("path", cfg.Metrics.Path),
		)
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return reg
}

// buildArchive returns the configured run archive, or nil when
// archiving is disabled.
func buildArchive(cfg *config.Config) (*archive.Runs, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}

	var store archive.Storage
	var err error
	switch cfg.Archive.Type {
	case "s3":
		store, err = archive.NewS3(archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		})
	default:
		store, err = archive.NewLocalFS(cfg.Archive.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	return archive.NewRuns(store), nil
}
