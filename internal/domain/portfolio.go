package domain

import "time"

// PortfolioResult is the outcome of replaying one window over a subset.
// With zero executed trades only InitialCapital and FinalEquity are set.
type PortfolioResult struct {
	Subset         string
	InitialCapital float64
	FinalEquity    float64
	TradeCount     int
	TotalReturnPct *float64 // nil when no trades
	CAGR           *float64 // percent, nil when no trades
	WinRate        *float64 // percent, nil when no trades
	MaxDrawdownPct *float64 // worst peak-to-trough of equity (%), nil when no trades
	Trades         []Trade
}

// HasTrades reports whether any trade executed.
func (p *PortfolioResult) HasTrades() bool {
	return p != nil && p.TradeCount > 0
}

// BenchmarkResult is the buy-and-hold outcome of the reference index.
type BenchmarkResult struct {
	Symbol         string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	StartPrice     float64 // 0 when Fallback
	EndPrice       float64 // 0 when Fallback
	FinalValue     float64
	TotalReturnPct float64
	CAGR           float64
	Fallback       bool // assumed annual return used instead of prices
}
