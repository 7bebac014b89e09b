package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Backtest.TrainTestSplit != 0.7 {
		t.Errorf("expected split 0.7, got %v", cfg.Backtest.TrainTestSplit)
	}
	if cfg.Backtest.MinSamples != 10 {
		t.Errorf("expected min samples 10, got %d", cfg.Backtest.MinSamples)
	}
	if cfg.Backtest.MaxPositionFraction != 0.10 {
		t.Errorf("expected max position 0.10, got %v", cfg.Backtest.MaxPositionFraction)
	}

	g, err := cfg.Grid()
	if err != nil {
		t.Fatalf("Grid failed: %v", err)
	}
	if n := len(g.Marks()); n != 13 {
		t.Errorf("expected 13 grid marks, got %d", n)
	}
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
backtest:
  train_test_split: 0.8
  start_date: "2020-01-01"
  end_date: "2024-12-31"
  max_tickers: 50
data:
  mode: polygon
log:
  level: debug
`)
	t.Setenv("POLYGON_API_KEY", "pk_test")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backtest.TrainTestSplit != 0.8 {
		t.Errorf("expected split 0.8, got %v", cfg.Backtest.TrainTestSplit)
	}
	if cfg.Backtest.MaxTickers != 50 {
		t.Errorf("expected max tickers 50, got %d", cfg.Backtest.MaxTickers)
	}
	if cfg.Data.Mode != ModePolygon {
		t.Errorf("expected mode normalised to %s, got %s", ModePolygon, cfg.Data.Mode)
	}
	if cfg.Data.PolygonAPIKey != "pk_test" {
		t.Errorf("expected api key from env, got %q", cfg.Data.PolygonAPIKey)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if !cfg.Data.Cache {
		t.Error("cache should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"split one":        func(c *Config) { c.Backtest.TrainTestSplit = 1 },
		"split negative":   func(c *Config) { c.Backtest.TrainTestSplit = -0.2 },
		"capital":          func(c *Config) { c.Backtest.InitialCapital = -1 },
		"position size":    func(c *Config) { c.Backtest.PositionSize = 1.5 },
		"max position":     func(c *Config) { c.Backtest.MaxPositionFraction = -0.1 },
		"min samples":      func(c *Config) { c.Backtest.MinSamples = -3 },
		"dates reversed":   func(c *Config) { c.Backtest.StartDate, c.Backtest.EndDate = "2024-01-01", "2023-01-01" },
		"bad date":         func(c *Config) { c.Backtest.StartDate = "01/02/2020" },
		"bad timezone":     func(c *Config) { c.Session.Timezone = "Mars/Olympus" },
		"bad grid":         func(c *Config) { c.Session.Open, c.Session.Close = "16:00", "09:30" },
		"unknown mode":     func(c *Config) { c.Data.Mode = "YAHOO" },
		"polygon no key":   func(c *Config) { c.Data.Mode = ModePolygon; c.Data.PolygonAPIKey = "" },
		"postgres no dsn":  func(c *Config) { c.Storage.Backend = BackendPostgres },
		"unknown backend":  func(c *Config) { c.Storage.Backend = "mongo" },
		"fallback too low": func(c *Config) { c.Benchmark.FallbackAnnualReturn = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestYAML_Redacts(t *testing.T) {
	cfg := Default()
	cfg.Data.PolygonAPIKey = "secret-key"
	cfg.Storage.PostgresDSN = "postgres://u:p@h/db"

	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}
	s := string(out)
	if strings.Contains(s, "secret-key") || strings.Contains(s, "u:p@h") {
		t.Errorf("secrets leaked into YAML:\n%s", s)
	}
	if cfg.Data.PolygonAPIKey != "secret-key" {
		t.Error("YAML must not mutate the receiver")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	for _, k := range []string{"DATA_MODE", "STORAGE_BACKEND", "MAX_TICKERS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example config invalid: %v", err)
	}
	if cfg.Data.Mode != ModeSimulation {
		t.Errorf("expected %s, got %s", ModeSimulation, cfg.Data.Mode)
	}
	if cfg.Session.StepMinutes != 30 {
		t.Errorf("expected step 30, got %d", cfg.Session.StepMinutes)
	}
}

func TestLoad_ExplicitZeros(t *testing.T) {
	for _, k := range []string{"DATA_MODE", "STORAGE_BACKEND"} {
		t.Setenv(k, "")
	}
	path := writeConfig(t, `
benchmark:
  fallback_annual_return: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Benchmark.FallbackAnnualReturn != 0 {
		t.Errorf("expected explicit fallback 0 to be kept, got %v", cfg.Benchmark.FallbackAnnualReturn)
	}
	if cfg.Backtest.MaxPositionFraction != 0.10 {
		t.Errorf("expected absent max position to default to 0.10, got %v", cfg.Backtest.MaxPositionFraction)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero fallback should validate: %v", err)
	}

	path = writeConfig(t, `
backtest:
  max_position_fraction: 0
`)
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backtest.MaxPositionFraction != 0 {
		t.Fatalf("expected explicit max position 0 to be kept, got %v", cfg.Backtest.MaxPositionFraction)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero max position, got %v", err)
	}
}
