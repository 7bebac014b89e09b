// Package config loads backtest configuration from YAML, .env and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/window"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Data modes.
const (
	ModeSimulation = "SIMULATION"
	ModePolygon    = "POLYGON"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the complete backtest configuration.
type Config struct {
	Backtest  BacktestConfig  `yaml:"backtest"`
	Session   SessionConfig   `yaml:"session"`
	Data      DataConfig      `yaml:"data"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Storage   StorageConfig   `yaml:"storage"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// BacktestConfig controls splitting, ranking and simulation.
type BacktestConfig struct {
	TrainTestSplit      float64 `yaml:"train_test_split"`
	StartDate           string  `yaml:"start_date"` // YYYY-MM-DD
	EndDate             string  `yaml:"end_date"`   // YYYY-MM-DD
	InitialCapital      float64 `yaml:"initial_capital"`
	PositionSize        float64 `yaml:"position_size"`         // fraction of equity per trade
	MaxPositionFraction float64 `yaml:"max_position_fraction"` // cap on position/equity, 0 is rejected
	MinSamples          int     `yaml:"min_samples"`
	MaxTickers          int     `yaml:"max_tickers"` // 0 = all
	Workers             int     `yaml:"workers"`     // 0 = NumCPU
}

// SessionConfig describes the exchange session and the window grid.
type SessionConfig struct {
	Timezone    string `yaml:"timezone"`
	Open        string `yaml:"open"`  // HH:MM
	Close       string `yaml:"close"` // HH:MM, exclusive for grid marks
	StepMinutes int    `yaml:"step_minutes"`
}

// DataConfig selects the intraday series source.
type DataConfig struct {
	Mode              string  `yaml:"mode"` // SIMULATION | POLYGON
	UniverseCSV       string  `yaml:"universe_csv"`
	Cache             bool    `yaml:"cache"`
	PolygonAPIKey     string  `yaml:"polygon_api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// BenchmarkConfig controls the passive comparison.
type BenchmarkConfig struct {
	Symbol               string  `yaml:"symbol"`
	FallbackAnnualReturn float64 `yaml:"fallback_annual_return"` // 0 means a flat benchmark
}

// StorageConfig controls persistence.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // memory | postgres
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	SQLitePath    string `yaml:"sqlite_path"` // local bar cache, used when ClickHouse is not configured
}

// OutputConfig controls run artefacts.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := seeded()
	setDefaults(cfg)
	return cfg
}

// seeded returns the defaults for fields where an explicit zero is a
// distinct value. They are set before YAML is parsed so that a zero in the
// file survives; setDefaults cannot tell a zero from an absent key.
func seeded() *Config {
	return &Config{
		Backtest:  BacktestConfig{MaxPositionFraction: 0.10},
		Data:      DataConfig{Cache: true},
		Benchmark: BenchmarkConfig{FallbackAnnualReturn: 0.10},
	}
}

// Load reads the YAML file at path, loads .env if present, applies
// environment overrides and defaults. An empty path yields Default with
// overrides applied. Load does not validate.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := seeded()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides replaces values with environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.Data.PolygonAPIKey = v
	}
	if v := os.Getenv("DATA_MODE"); v != "" {
		cfg.Data.Mode = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("MAX_TICKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backtest.MaxTickers = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills zero values.
func setDefaults(cfg *Config) {
	b := &cfg.Backtest
	if b.TrainTestSplit == 0 {
		b.TrainTestSplit = 0.7
	}
	if b.StartDate == "" {
		b.StartDate = "2000-01-01"
	}
	if b.EndDate == "" {
		b.EndDate = "2025-09-30"
	}
	if b.InitialCapital == 0 {
		b.InitialCapital = 100000
	}
	if b.PositionSize == 0 {
		b.PositionSize = 0.02
	}
	if b.MinSamples == 0 {
		b.MinSamples = 10
	}

	s := &cfg.Session
	if s.Timezone == "" {
		s.Timezone = "America/New_York"
	}
	if s.Open == "" {
		s.Open = "09:30"
	}
	if s.Close == "" {
		s.Close = "16:00"
	}
	if s.StepMinutes == 0 {
		s.StepMinutes = 30
	}

	if cfg.Data.Mode == "" {
		cfg.Data.Mode = ModeSimulation
	}
	cfg.Data.Mode = strings.ToUpper(cfg.Data.Mode)
	if cfg.Data.UniverseCSV == "" {
		cfg.Data.UniverseCSV = "data/combined_universe.csv"
	}
	if cfg.Data.RequestsPerSecond == 0 {
		cfg.Data.RequestsPerSecond = 5
	}

	if cfg.Benchmark.Symbol == "" {
		cfg.Benchmark.Symbol = "SPY"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "outputs"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate checks value ranges. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	b := c.Backtest
	if b.TrainTestSplit <= 0 || b.TrainTestSplit >= 1 {
		return fmt.Errorf("%w: train_test_split must be in (0,1), got %v", ErrInvalidConfig, b.TrainTestSplit)
	}
	if b.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive, got %v", ErrInvalidConfig, b.InitialCapital)
	}
	if b.PositionSize <= 0 || b.PositionSize > 1 {
		return fmt.Errorf("%w: position_size must be in (0,1], got %v", ErrInvalidConfig, b.PositionSize)
	}
	if b.MaxPositionFraction <= 0 || b.MaxPositionFraction > 1 {
		return fmt.Errorf("%w: max_position_fraction must be in (0,1], got %v", ErrInvalidConfig, b.MaxPositionFraction)
	}
	if b.MinSamples < 1 {
		return fmt.Errorf("%w: min_samples must be >= 1, got %d", ErrInvalidConfig, b.MinSamples)
	}
	if b.MaxTickers < 0 {
		return fmt.Errorf("%w: max_tickers must be >= 0, got %d", ErrInvalidConfig, b.MaxTickers)
	}

	start, end, err := c.DateRange()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end_date %s before start_date %s", ErrInvalidConfig, b.EndDate, b.StartDate)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Grid(); err != nil {
		return err
	}

	switch c.Data.Mode {
	case ModeSimulation:
	case ModePolygon:
		if c.Data.PolygonAPIKey == "" {
			return fmt.Errorf("%w: data.mode %s requires polygon_api_key", ErrInvalidConfig, ModePolygon)
		}
	default:
		return fmt.Errorf("%w: unknown data.mode %q", ErrInvalidConfig, c.Data.Mode)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.backend %s requires postgres_dsn", ErrInvalidConfig, BackendPostgres)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	if c.Benchmark.FallbackAnnualReturn <= -1 {
		return fmt.Errorf("%w: fallback_annual_return must be > -1", ErrInvalidConfig)
	}
	return nil
}

// DateRange parses start_date and end_date as UTC midnights.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(domain.DateLayout, c.Backtest.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date: %v", ErrInvalidConfig, err)
	}
	end, err := time.Parse(domain.DateLayout, c.Backtest.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date: %v", ErrInvalidConfig, err)
	}
	return start, end, nil
}

// Location loads the session time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Session.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Session.Timezone, err)
	}
	return loc, nil
}

// Grid builds the validated window grid.
func (c *Config) Grid() (window.Grid, error) {
	open, err := domain.ParseTimeOfDay(c.Session.Open)
	if err != nil {
		return window.Grid{}, fmt.Errorf("%w: session.open: %v", ErrInvalidConfig, err)
	}
	closeT, err := domain.ParseTimeOfDay(c.Session.Close)
	if err != nil {
		return window.Grid{}, fmt.Errorf("%w: session.close: %v", ErrInvalidConfig, err)
	}
	g := window.Grid{Open: open, Close: closeT, StepMinutes: c.Session.StepMinutes}
	if err := g.Validate(); err != nil {
		return window.Grid{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return g, nil
}

// Redacted returns a copy with secrets and DSNs blanked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Data.PolygonAPIKey != "" {
		out.Data.PolygonAPIKey = "***"
	}
	if out.Storage.PostgresDSN != "" {
		out.Storage.PostgresDSN = "***"
	}
	if out.Storage.ClickHouseDSN != "" {
		out.Storage.ClickHouseDSN = "***"
	}
	return &out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}
