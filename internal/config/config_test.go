package config

import (
	"os"
	"path/filepath"
	"testing"

	"funding-arb-lab/internal/domain"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	doc := `
postgres_dsn: postgres://user:pass@db:5432/arb
strategies_file: strategies.yaml
backtest:
  initial_capital: 50000
  entry_top_n: 2
  exit_threshold: 4
  max_positions: 2
  sizing_mode: fixed_amount
  fixed_amount: 5000
  fee_rate: 0.0005
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PostgresDSN != "postgres://user:pass@db:5432/arb" {
		t.Errorf("postgres dsn = %q", cfg.PostgresDSN)
	}
	// Untouched keys keep their defaults.
	if cfg.ClickhouseDSN != Default().ClickhouseDSN {
		t.Errorf("clickhouse dsn = %q", cfg.ClickhouseDSN)
	}
	if cfg.Backtest.InitialCapital != 50000 || cfg.Backtest.SizingMode != domain.SizingFixedAmount {
		t.Errorf("backtest defaults = %+v", cfg.Backtest)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backtest.InitialCapital != Default().Backtest.InitialCapital {
		t.Errorf("InitialCapital = %v", cfg.Backtest.InitialCapital)
	}
}

func TestBacktestConfig_BindsAndValidates(t *testing.T) {
	cfg := Default()
	start, err := domain.ParseDate("2024-03-01")
	if err != nil {
		t.Fatal(err)
	}
	end := start.AddDays(30)

	bt := cfg.BacktestConfig("cerebrum_v1", start, end)
	if err := bt.Validate(); err != nil {
		t.Fatalf("default backtest config invalid: %v", err)
	}
	if bt.StrategyName != "cerebrum_v1" || !bt.StartDate.Equal(start) || !bt.EndDate.Equal(end) {
		t.Errorf("bound config = %+v", bt)
	}
}
