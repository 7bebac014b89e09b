package domain

import "time"

// Outcome is the terminal state of a run.
type Outcome string

// Run outcomes.
const (
	OutcomeStrategySelected Outcome = "STRATEGY_SELECTED"
	OutcomeNoStrategy       Outcome = "NO_STRATEGY"
)

// RunResult is the bundle produced by one backtest run.
// Corresponds to runs table in Postgres.
type RunResult struct {
	RunID      string
	Outcome    Outcome
	StartedAt  time.Time
	FinishedAt time.Time

	Split        SplitInfo
	SeriesLoaded int // listings with usable intraday data

	RankedWindows []WindowStatistic // descending mean return
	Selected      *WindowStatistic  // nil when Outcome is OutcomeNoStrategy

	Train     *PortfolioResult
	Test      *PortfolioResult
	Benchmark *BenchmarkResult

	Warnings []string
}

// RunSummary is the persisted header of a run.
type RunSummary struct {
	RunID          string
	Outcome        Outcome
	StartedAt      time.Time
	FinishedAt     time.Time
	TrainCount     int
	TestCount      int
	SelectedWindow *TradingWindow
	TrainFinal     *float64
	TestFinal      *float64
	BenchmarkFinal *float64
	ConfigJSON     string
}
