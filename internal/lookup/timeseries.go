package lookup

import (
	"errors"
	"time"

	"ipo-window-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPriceData = errors.New("no price data available")
)

// Index maps wall-clock minutes to the bars of one listing-day series.
// When several bars share a minute, the first in series order wins.
type Index struct {
	ticker string
	bars   map[domain.TimeOfDay]domain.Bar
}

// NewIndex builds an index over series with bar clocks read in loc.
// Returns ErrNoPriceData if series has no bars.
func NewIndex(series *domain.IntradaySeries, loc *time.Location) (*Index, error) {
	if series.Len() == 0 {
		return nil, ErrNoPriceData
	}

	idx := &Index{
		ticker: series.Ticker,
		bars:   make(map[domain.TimeOfDay]domain.Bar, len(series.Bars)),
	}
	for _, b := range series.Bars {
		tod := domain.TimeOfDayOf(b.Timestamp, loc)
		if _, ok := idx.bars[tod]; !ok {
			idx.bars[tod] = b
		}
	}
	return idx, nil
}

// Ticker returns the indexed ticker.
func (i *Index) Ticker() string { return i.ticker }

// BarAt returns the bar whose clock time equals t.
func (i *Index) BarAt(t domain.TimeOfDay) (domain.Bar, bool) {
	b, ok := i.bars[t]
	return b, ok
}

// CloseAt returns the close of the bar at t.
func (i *Index) CloseAt(t domain.TimeOfDay) (float64, bool) {
	b, ok := i.bars[t]
	if !ok {
		return 0, false
	}
	return b.Close, true
}

// WindowPrices returns buy and sell closes for w.
// ok is false when either bar is missing or the buy price is not positive.
// A zero sell price is a valid total loss.
func (i *Index) WindowPrices(w domain.TradingWindow) (buy, sell domain.Bar, ok bool) {
	buy, okBuy := i.bars[w.Buy]
	sell, okSell := i.bars[w.Sell]
	if !okBuy || !okSell || buy.Close <= 0 {
		return domain.Bar{}, domain.Bar{}, false
	}
	return buy, sell, true
}

// WindowReturn returns (sell/buy - 1) * 100 for w.
func (i *Index) WindowReturn(w domain.TradingWindow) (float64, bool) {
	buy, sell, ok := i.WindowPrices(w)
	if !ok {
		return 0, false
	}
	return (sell.Close/buy.Close - 1) * 100, true
}
