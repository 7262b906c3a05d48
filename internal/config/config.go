package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/optfolio/optfolio/internal/core"
)

type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Cost       CostConfig       `mapstructure:"cost"`
	Tuner      TunerConfig      `mapstructure:"tuner"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DataConfig selects the market data source.
type DataConfig struct {
	Source    string          `mapstructure:"source"` // "csv" or "synthetic"
	Path      string          `mapstructure:"path"`   // For csv
	Synthetic SyntheticConfig `mapstructure:"synthetic"`
}

// SyntheticConfig parameterizes the generated price series.
type SyntheticConfig struct {
	Assets     int     `mapstructure:"assets"`
	Periods    int     `mapstructure:"periods"`
	Start      string  `mapstructure:"start"`
	Drift      float64 `mapstructure:"drift"`
	Volatility float64 `mapstructure:"volatility"`
	Seed       int64   `mapstructure:"seed"`
}

type SimulationConfig struct {
	Start          string  `mapstructure:"start"`
	End            string  `mapstructure:"end"`
	Lookback       int     `mapstructure:"lookback"`
	InitialCash    float64 `mapstructure:"initial_cash"`
	OnInfeasible   string  `mapstructure:"on_infeasible"` // "abort" or "hold"
	AllowShortCash bool    `mapstructure:"allow_short_cash"`
	PeriodsPerYear float64 `mapstructure:"periods_per_year"`
}

type PolicyConfig struct {
	Type         string       `mapstructure:"type"` // "uniform", "spo" or "mpo"
	CashWeight   float64      `mapstructure:"cash_weight"`
	RiskAversion float64      `mapstructure:"risk_aversion"`
	CostAversion float64      `mapstructure:"cost_aversion"`
	MaxLeverage  float64      `mapstructure:"max_leverage"`
	Horizon      int          `mapstructure:"horizon"`
	LongOnly     bool         `mapstructure:"long_only"`
	Solver       SolverConfig `mapstructure:"solver"`
}

type SolverConfig struct {
	MaxIters int     `mapstructure:"max_iters"`
	StepSize float64 `mapstructure:"step_size"`
}

type RiskConfig struct {
	Model      string  `mapstructure:"model"` // "sample" or "diagonal"
	MinPeriods int     `mapstructure:"min_periods"`
	Shrinkage  float64 `mapstructure:"shrinkage"` // For sample
	Lambda     float64 `mapstructure:"lambda"`    // EWMA decay for diagonal
}

type CostConfig struct {
	SpreadDefault float64            `mapstructure:"spread_default"`
	Spread        map[string]float64 `mapstructure:"spread"`
	Impact        float64            `mapstructure:"impact"`
	Exponent      float64            `mapstructure:"exponent"`
	Fixed         float64            `mapstructure:"fixed"`
	BorrowDefault float64            `mapstructure:"borrow_default"`
	Borrow        map[string]float64 `mapstructure:"borrow"`
	Dividend      float64            `mapstructure:"dividend"`
}

type TunerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Objective string `mapstructure:"objective"` // "sharpe", "growth" or "profit"
	MaxRounds int    `mapstructure:"max_rounds"`
	Workers   int    `mapstructure:"workers"`
}

// ArchiveConfig holds result archive settings.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Data: DataConfig{
			Source: "synthetic",
			Synthetic: SyntheticConfig{
				Assets:     10,
				Periods:    500,
				Drift:      0.0002,
				Volatility: 0.01,
				Seed:       1,
			},
		},
		Simulation: SimulationConfig{
			Lookback:       60,
			InitialCash:    1_000_000,
			OnInfeasible:   "abort",
			PeriodsPerYear: 252,
		},
		Policy: PolicyConfig{
			Type:         "spo",
			RiskAversion: 5,
			CostAversion: 1,
			MaxLeverage:  1,
			Horizon:      1,
			LongOnly:     true,
		},
		Risk: RiskConfig{
			Model:      "sample",
			MinPeriods: 20,
			Shrinkage:  0.1,
			Lambda:     0.94,
		},
		Cost: CostConfig{
			Exponent: 1.5,
		},
		Tuner: TunerConfig{
			Objective: "sharpe",
			MaxRounds: 20,
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "runs",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case "csv":
		if c.Data.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data path required when source is csv"))
		}
	case "synthetic":
		if c.Data.Synthetic.Assets < 1 || c.Data.Synthetic.Periods < 2 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("synthetic data needs at least 1 asset and 2 periods"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data source %q", c.Data.Source))
	}

	if c.Simulation.Lookback < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("lookback must be at least 1, got %d", c.Simulation.Lookback))
	}
	if c.Simulation.InitialCash <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_cash must be positive, got %f", c.Simulation.InitialCash))
	}
	switch c.Simulation.OnInfeasible {
	case "abort", "hold":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("on_infeasible must be abort or hold, got %q", c.Simulation.OnInfeasible))
	}
	if c.Simulation.PeriodsPerYear <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("periods_per_year must be positive, got %f", c.Simulation.PeriodsPerYear))
	}

	switch c.Policy.Type {
	case "uniform", "spo", "mpo":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown policy type %q", c.Policy.Type))
	}
	if c.Policy.RiskAversion < 0 || c.Policy.CostAversion < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("aversion parameters cannot be negative"))
	}
	if c.Policy.MaxLeverage <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_leverage must be positive, got %f", c.Policy.MaxLeverage))
	}
	if c.Policy.Horizon < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("horizon must be at least 1, got %d", c.Policy.Horizon))
	}
	if c.Policy.CashWeight < 0 || c.Policy.CashWeight >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cash_weight must be in [0, 1), got %f", c.Policy.CashWeight))
	}

	switch c.Risk.Model {
	case "sample", "diagonal":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown risk model %q", c.Risk.Model))
	}
	if c.Risk.Shrinkage < 0 || c.Risk.Shrinkage > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("shrinkage must be in [0, 1], got %f", c.Risk.Shrinkage))
	}
	if c.Risk.Lambda <= 0 || c.Risk.Lambda >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("lambda must be in (0, 1), got %f", c.Risk.Lambda))
	}

	if c.Cost.Exponent <= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cost exponent must exceed 1, got %f", c.Cost.Exponent))
	}
	if c.Cost.SpreadDefault < 0 || c.Cost.Impact < 0 || c.Cost.Fixed < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cost coefficients cannot be negative"))
	}

	switch c.Tuner.Objective {
	case "sharpe", "growth", "profit":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown tuner objective %q", c.Tuner.Objective))
	}

	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive path required when type is localfs"))
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("s3 bucket required when archive type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Archive.Type))
		}
	}

	return nil
}
