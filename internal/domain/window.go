package domain

// TradingWindow is a buy time and a later sell time on the listing day.
type TradingWindow struct {
	Buy  TimeOfDay
	Sell TimeOfDay
}

// Label renders the window as "HH:MM-HH:MM".
func (w TradingWindow) Label() string {
	return w.Buy.String() + "-" + w.Sell.String()
}

// HoldMinutes returns the holding duration in minutes.
func (w TradingWindow) HoldMinutes() int {
	return int(w.Sell - w.Buy)
}

// WindowStatistic summarizes per-ticker returns of one window.
// Returns, std-dev and win rate are percentages.
// Corresponds to window_statistics table in Postgres.
type WindowStatistic struct {
	Window       TradingWindow
	MeanReturn   float64 // mean of per-ticker returns (%)
	StdReturn    float64 // population std-dev (%)
	WinRate      float64 // share of returns > 0 (%)
	Sharpe       float64 // MeanReturn / StdReturn, 0 when StdReturn is 0
	SampleCount  int     // tickers with both timestamps present
	MedianReturn float64
	MinReturn    float64
	MaxReturn    float64
}
