package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FromFile(t *testing.T) {
	content := []byte(`
data:
  source: csv
  path: "prices.csv"

simulation:
  start: "2023-01-02"
  end: "2024-01-02"
  lookback: 90

policy:
  type: mpo
  horizon: 3

archive:
  enabled: true
  type: localfs
  path: "/tmp/optfolio/runs"
`)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Data.Source != "csv" || cfg.Data.Path != "prices.csv" {
		t.Errorf("unexpected data config: %+v", cfg.Data)
	}
	if cfg.Simulation.Lookback != 90 {
		t.Errorf("expected lookback 90, got %d", cfg.Simulation.Lookback)
	}
	if cfg.Policy.Type != "mpo" || cfg.Policy.Horizon != 3 {
		t.Errorf("unexpected policy config: %+v", cfg.Policy)
	}

	// Unset keys keep their defaults.
	if cfg.Simulation.PeriodsPerYear != 252 {
		t.Errorf("expected default periods_per_year 252, got %f", cfg.Simulation.PeriodsPerYear)
	}
	if cfg.Policy.RiskAversion != 5 {
		t.Errorf("expected default risk_aversion 5, got %f", cfg.Policy.RiskAversion)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Data.Source != "synthetic" {
		t.Errorf("expected default source synthetic, got %s", cfg.Data.Source)
	}
	if cfg.Simulation.OnInfeasible != "abort" {
		t.Errorf("expected default on_infeasible abort, got %s", cfg.Simulation.OnInfeasible)
	}
	if cfg.Policy.Type != "spo" {
		t.Errorf("expected default policy spo, got %s", cfg.Policy.Type)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return Defaults() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "csv without path",
			mutate:  func(c *Config) { c.Data.Source = "csv"; c.Data.Path = "" },
			wantErr: true,
		},
		{
			name:    "unknown data source",
			mutate:  func(c *Config) { c.Data.Source = "oracle" },
			wantErr: true,
		},
		{
			name:    "zero lookback",
			mutate:  func(c *Config) { c.Simulation.Lookback = 0 },
			wantErr: true,
		},
		{
			name:    "negative initial cash",
			mutate:  func(c *Config) { c.Simulation.InitialCash = -1 },
			wantErr: true,
		},
		{
			name:    "bad infeasible mode",
			mutate:  func(c *Config) { c.Simulation.OnInfeasible = "retry" },
			wantErr: true,
		},
		{
			name:    "unknown policy type",
			mutate:  func(c *Config) { c.Policy.Type = "momentum" },
			wantErr: true,
		},
		{
			name:    "zero horizon",
			mutate:  func(c *Config) { c.Policy.Horizon = 0 },
			wantErr: true,
		},
		{
			name:    "cash weight of one",
			mutate:  func(c *Config) { c.Policy.CashWeight = 1 },
			wantErr: true,
		},
		{
			name:    "shrinkage above one",
			mutate:  func(c *Config) { c.Risk.Shrinkage = 1.5 },
			wantErr: true,
		},
		{
			name:    "linear cost exponent",
			mutate:  func(c *Config) { c.Cost.Exponent = 1 },
			wantErr: true,
		},
		{
			name:    "unknown tuner objective",
			mutate:  func(c *Config) { c.Tuner.Objective = "alpha" },
			wantErr: true,
		},
		{
			name: "s3 archive without bucket",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Type = "s3"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
