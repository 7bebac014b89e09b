package domain

import "time"

// Trade is one simulated round trip inside a portfolio simulation.
// Corresponds to trades table in Postgres.
type Trade struct {
	TradeID  string    // deterministic hash
	Ticker   string    // listing ticker
	Date     time.Time // listing date
	Window   TradingWindow
	BuyTime  time.Time // bar timestamp used for entry
	SellTime time.Time // bar timestamp used for exit

	BuyPrice      float64
	SellPrice     float64
	PositionValue float64 // capital committed at entry
	Shares        float64 // fractional shares
	PnL           float64 // shares * (sell - buy)
	PnLPct        float64 // (sell/buy - 1) * 100
	EquityAfter   float64 // equity after settling this trade
}

// IsWin reports whether the trade closed with positive P&L.
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// Subset labels.
const (
	SubsetTrain = "train"
	SubsetTest  = "test"
)
