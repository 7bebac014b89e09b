package reporting

import (
	"encoding/json"
	"time"

	"ipo-window-lab/internal/domain"
)

// Results is the JSON document written to backtest_results.json.
type Results struct {
	RunID           string         `json:"run_id"`
	Outcome         string         `json:"outcome"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	SplitInfo       SplitInfoJSON  `json:"split_info"`
	SeriesLoaded    int            `json:"series_loaded"`
	WindowsRanked   int            `json:"windows_ranked"`
	OptimalStrategy *StrategyJSON  `json:"optimal_strategy"`
	TrainPortfolio  *PortfolioJSON `json:"train_portfolio"`
	TestPortfolio   *PortfolioJSON `json:"test_portfolio"`
	Benchmark       *BenchmarkJSON `json:"benchmark"`
	Warnings        []string       `json:"warnings,omitempty"`
	OutputDir       string         `json:"output_dir,omitempty"`
}

// SplitInfoJSON mirrors domain.SplitInfo with calendar dates.
type SplitInfoJSON struct {
	TrainCount int     `json:"train_count"`
	TestCount  int     `json:"test_count"`
	TrainStart *string `json:"train_start"`
	TrainEnd   *string `json:"train_end"`
	TestStart  *string `json:"test_start"`
	TestEnd    *string `json:"test_end"`
}

// StrategyJSON is the selected window and its training statistics.
type StrategyJSON struct {
	Window      string  `json:"window"`
	BuyTime     string  `json:"buy_time"`
	SellTime    string  `json:"sell_time"`
	DurationHrs float64 `json:"duration_hrs"`
	NTickers    int     `json:"n_tickers"`
	AvgReturn   float64 `json:"avg_return"`
	StdReturn   float64 `json:"std_return"`
	WinRate     float64 `json:"win_rate"`
	Sharpe      float64 `json:"sharpe"`
}

// PortfolioJSON is a simulated portfolio. Optional fields are omitted without trades.
type PortfolioJSON struct {
	InitialCapital float64  `json:"initial_capital"`
	FinalValue     float64  `json:"final_value"`
	TotalReturnPct *float64 `json:"total_return_pct,omitempty"`
	CAGR           *float64 `json:"cagr,omitempty"`
	TotalTrades    *int     `json:"total_trades,omitempty"`
	WinRate        *float64 `json:"win_rate,omitempty"`
	MaxDrawdownPct *float64 `json:"max_drawdown_pct,omitempty"`
}

// BenchmarkJSON is the buy-and-hold reference.
type BenchmarkJSON struct {
	Symbol         string  `json:"symbol"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	InitialCapital float64 `json:"initial_capital"`
	FinalValue     float64 `json:"final_value"`
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGR           float64 `json:"cagr"`
	Fallback       bool    `json:"fallback"`
}

// NewResults converts a run result into its JSON document.
func NewResults(res *domain.RunResult) *Results {
	out := &Results{
		RunID:         res.RunID,
		Outcome:       string(res.Outcome),
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		SeriesLoaded:  res.SeriesLoaded,
		WindowsRanked: len(res.RankedWindows),
		Warnings:      res.Warnings,
		SplitInfo: SplitInfoJSON{
			TrainCount: res.Split.TrainCount,
			TestCount:  res.Split.TestCount,
			TrainStart: datePtr(res.Split.TrainStart),
			TrainEnd:   datePtr(res.Split.TrainEnd),
			TestStart:  datePtr(res.Split.TestStart),
			TestEnd:    datePtr(res.Split.TestEnd),
		},
		TrainPortfolio: portfolioJSON(res.Train),
		TestPortfolio:  portfolioJSON(res.Test),
	}

	if s := res.Selected; s != nil {
		out.OptimalStrategy = &StrategyJSON{
			Window:      s.Window.Label(),
			BuyTime:     s.Window.Buy.String(),
			SellTime:    s.Window.Sell.String(),
			DurationHrs: float64(s.Window.HoldMinutes()) / 60,
			NTickers:    s.SampleCount,
			AvgReturn:   s.MeanReturn,
			StdReturn:   s.StdReturn,
			WinRate:     s.WinRate,
			Sharpe:      s.Sharpe,
		}
	}
	if b := res.Benchmark; b != nil {
		out.Benchmark = &BenchmarkJSON{
			Symbol:         b.Symbol,
			StartDate:      b.StartDate.Format(domain.DateLayout),
			EndDate:        b.EndDate.Format(domain.DateLayout),
			InitialCapital: b.InitialCapital,
			FinalValue:     b.FinalValue,
			TotalReturnPct: b.TotalReturnPct,
			CAGR:           b.CAGR,
			Fallback:       b.Fallback,
		}
	}
	return out
}

// MarshalIndent renders the document with two-space indentation.
func (r *Results) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func portfolioJSON(p *domain.PortfolioResult) *PortfolioJSON {
	if p == nil {
		return nil
	}
	out := &PortfolioJSON{
		InitialCapital: p.InitialCapital,
		FinalValue:     p.FinalEquity,
		TotalReturnPct: p.TotalReturnPct,
		CAGR:           p.CAGR,
		WinRate:        p.WinRate,
		MaxDrawdownPct: p.MaxDrawdownPct,
	}
	if p.HasTrades() {
		n := p.TradeCount
		out.TotalTrades = &n
	}
	return out
}

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(domain.DateLayout)
	return &s
}
