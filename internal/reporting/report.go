package reporting

import (
	"time"

	"ipo-window-lab/internal/domain"
)

// DefaultTopWindows is the number of ranked windows shown in the report.
const DefaultTopWindows = 10

// Report represents the backtest report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Outcome     domain.Outcome
	Parameters  Parameters

	// Universe
	Split        domain.SplitInfo
	SeriesLoaded int

	// Window search
	WindowsRanked int
	TopWindows    []domain.WindowStatistic
	Selected      *domain.WindowStatistic

	// Out-of-sample comparison
	Comparison []ComparisonRow
	Benchmark  *domain.BenchmarkResult

	Warnings []string
}

// Parameters echoes the run inputs that shape the results.
type Parameters struct {
	SplitRatio       float64
	InitialCapital   float64
	PositionFraction float64
	MinSamples       int
	DataMode         string
}

// ComparisonRow is one column of the train/test/benchmark comparison.
// Optional values are nil for portfolios without trades.
type ComparisonRow struct {
	Label          string
	FinalValue     float64
	TotalReturnPct *float64
	CAGR           *float64
	WinRate        *float64
	MaxDrawdownPct *float64
	Trades         *int
}

// Generator produces reports from run results.
type Generator struct {
	topN int
	now  func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		topN: DefaultTopWindows,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTopWindows sets how many ranked windows the report lists.
func (g *Generator) WithTopWindows(n int) *Generator {
	if n > 0 {
		g.topN = n
	}
	return g
}

// Generate builds a report for res.
func (g *Generator) Generate(res *domain.RunResult, params Parameters) *Report {
	r := &Report{
		GeneratedAt:   g.now(),
		RunID:         res.RunID,
		Outcome:       res.Outcome,
		Parameters:    params,
		Split:         res.Split,
		SeriesLoaded:  res.SeriesLoaded,
		WindowsRanked: len(res.RankedWindows),
		Selected:      res.Selected,
		Benchmark:     res.Benchmark,
		Warnings:      append([]string(nil), res.Warnings...),
	}

	top := res.RankedWindows
	if len(top) > g.topN {
		top = top[:g.topN]
	}
	r.TopWindows = append([]domain.WindowStatistic(nil), top...)

	if res.Train != nil {
		r.Comparison = append(r.Comparison, portfolioRow("Training", res.Train))
	}
	if res.Test != nil {
		r.Comparison = append(r.Comparison, portfolioRow("Testing", res.Test))
	}
	if res.Benchmark != nil {
		b := res.Benchmark
		total, cagr := b.TotalReturnPct, b.CAGR
		label := b.Symbol + " Benchmark"
		if b.Fallback {
			label += " (assumed)"
		}
		r.Comparison = append(r.Comparison, ComparisonRow{
			Label:          label,
			FinalValue:     b.FinalValue,
			TotalReturnPct: &total,
			CAGR:           &cagr,
		})
	}
	return r
}

func portfolioRow(label string, p *domain.PortfolioResult) ComparisonRow {
	n := p.TradeCount
	return ComparisonRow{
		Label:          label,
		FinalValue:     p.FinalEquity,
		TotalReturnPct: p.TotalReturnPct,
		CAGR:           p.CAGR,
		WinRate:        p.WinRate,
		MaxDrawdownPct: p.MaxDrawdownPct,
		Trades:         &n,
	}
}
