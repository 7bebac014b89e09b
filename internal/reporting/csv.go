package reporting

import (
	"io"

	"github.com/gocarina/gocsv"

	"ipo-window-lab/internal/domain"
)

// WindowRow is one row of train_window_analysis.csv.
type WindowRow struct {
	Rank         int     `csv:"rank"`
	Window       string  `csv:"window"`
	BuyTime      string  `csv:"buy_time"`
	SellTime     string  `csv:"sell_time"`
	DurationHrs  float64 `csv:"duration_hrs"`
	NTickers     int     `csv:"n_tickers"`
	AvgReturn    float64 `csv:"avg_return"`
	MedianReturn float64 `csv:"median_return"`
	StdReturn    float64 `csv:"std_return"`
	MinReturn    float64 `csv:"min_return"`
	MaxReturn    float64 `csv:"max_return"`
	WinRate      float64 `csv:"win_rate"`
	Sharpe       float64 `csv:"sharpe"`
}

// TradeRow is one row of a trades CSV.
type TradeRow struct {
	Seq           int     `csv:"seq"`
	TradeID       string  `csv:"trade_id"`
	Date          string  `csv:"date"`
	Ticker        string  `csv:"ticker"`
	Window        string  `csv:"window"`
	BuyPrice      float64 `csv:"buy_price"`
	SellPrice     float64 `csv:"sell_price"`
	PositionValue float64 `csv:"position_value"`
	Shares        float64 `csv:"shares"`
	PnL           float64 `csv:"pnl"`
	PnLPct        float64 `csv:"pnl_pct"`
	PortfolioVal  float64 `csv:"portfolio_value"`
}

// WindowRows converts ranked statistics into CSV rows, rank starting at 1.
func WindowRows(stats []domain.WindowStatistic) []*WindowRow {
	rows := make([]*WindowRow, len(stats))
	for i, s := range stats {
		rows[i] = &WindowRow{
			Rank:         i + 1,
			Window:       s.Window.Label(),
			BuyTime:      s.Window.Buy.String(),
			SellTime:     s.Window.Sell.String(),
			DurationHrs:  float64(s.Window.HoldMinutes()) / 60,
			NTickers:     s.SampleCount,
			AvgReturn:    s.MeanReturn,
			MedianReturn: s.MedianReturn,
			StdReturn:    s.StdReturn,
			MinReturn:    s.MinReturn,
			MaxReturn:    s.MaxReturn,
			WinRate:      s.WinRate,
			Sharpe:       s.Sharpe,
		}
	}
	return rows
}

// TradeRows converts trades into CSV rows in execution order.
func TradeRows(trades []domain.Trade) []*TradeRow {
	rows := make([]*TradeRow, len(trades))
	for i, t := range trades {
		rows[i] = &TradeRow{
			Seq:           i + 1,
			TradeID:       t.TradeID,
			Date:          t.Date.Format(domain.DateLayout),
			Ticker:        t.Ticker,
			Window:        t.Window.Label(),
			BuyPrice:      t.BuyPrice,
			SellPrice:     t.SellPrice,
			PositionValue: t.PositionValue,
			Shares:        t.Shares,
			PnL:           t.PnL,
			PnLPct:        t.PnLPct,
			PortfolioVal:  t.EquityAfter,
		}
	}
	return rows
}

// WriteWindowsCSV writes the ranked window table.
func WriteWindowsCSV(w io.Writer, stats []domain.WindowStatistic) error {
	return gocsv.Marshal(WindowRows(stats), w)
}

// WriteTradesCSV writes a trade ledger.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	return gocsv.Marshal(TradeRows(trades), w)
}
