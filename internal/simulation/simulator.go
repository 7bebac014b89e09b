// Package simulation replays a fixed trading window across the listings of a
// subset with compounding, fractional position sizing.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/idhash"
	"ipo-window-lab/internal/lookup"
	"ipo-window-lab/internal/universe"
)

// Defaults match the reference portfolio.
const (
	DefaultInitialCapital      = 100000.0
	DefaultPositionFraction    = 0.02
	DefaultMaxPositionFraction = 0.10
	daysPerYear                = 365.25
)

// Simulator errors
var (
	ErrInvalidCapital  = errors.New("initial capital must be positive")
	ErrInvalidFraction = errors.New("position fraction must be in (0,1]")
)

// Simulator executes sequential portfolio simulations.
type Simulator struct {
	initialCapital      float64
	positionFraction    float64
	maxPositionFraction float64
	location            *time.Location
	runID               string
	logger              *log.Entry
}

// SimulatorOptions contains configuration for creating a Simulator.
type SimulatorOptions struct {
	InitialCapital      float64
	PositionFraction    float64        // share of current equity per trade
	MaxPositionFraction float64        // hard cap as share of current equity, in (0,1]
	Location            *time.Location // exchange time zone for bar clocks
	RunID               string         // used to derive trade IDs
	Logger              *log.Entry
}

// NewSimulator creates a simulator, validating sizing parameters.
func NewSimulator(opts SimulatorOptions) (*Simulator, error) {
	if opts.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidCapital, opts.InitialCapital)
	}
	if opts.PositionFraction <= 0 || opts.PositionFraction > 1 {
		return nil, fmt.Errorf("%w: position fraction %v", ErrInvalidFraction, opts.PositionFraction)
	}
	if opts.MaxPositionFraction <= 0 || opts.MaxPositionFraction > 1 {
		return nil, fmt.Errorf("%w: max position fraction %v", ErrInvalidFraction, opts.MaxPositionFraction)
	}

	s := &Simulator{
		initialCapital:      opts.InitialCapital,
		positionFraction:    opts.PositionFraction,
		maxPositionFraction: opts.MaxPositionFraction,
		location:            opts.Location,
		runID:               opts.RunID,
		logger:              opts.Logger,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "simulator")
	}
	return s, nil
}

// Simulate replays w over listings in chronological order.
// Steps:
//  1. Stable-sort listings by listing date
//  2. For each listing with both window bars: size, execute, settle
//  3. Compute summary statistics from the executed trades
//
// series is keyed by ListingEvent.Key. Listings without a series, without
// either bar or with a non-positive buy price are skipped. Equity after
// trade i is the basis for sizing trade i+1, so the loop is sequential.
func (s *Simulator) Simulate(
	ctx context.Context,
	subset string,
	listings []domain.ListingEvent,
	series map[string]*domain.IntradaySeries,
	w domain.TradingWindow,
	progress domain.ProgressFunc,
) (*domain.PortfolioResult, error) {
	// 1. Chronological order
	ordered := universe.SortByDate(listings)

	equity := s.initialCapital
	trades := make([]domain.Trade, 0, len(ordered))
	skipped := 0

	// 2. Sequential execution
	for i, l := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulate %s: %w", subset, err)
		}
		progress.Report(float64(i+1)/float64(len(ordered)),
			fmt.Sprintf("Simulating %s %d/%d", subset, i+1, len(ordered)))

		idx, err := lookup.NewIndex(series[l.Key()], s.location)
		if err != nil {
			skipped++
			continue
		}
		buy, sell, ok := idx.WindowPrices(w)
		if !ok {
			skipped++
			continue
		}

		position := s.PositionSize(equity)
		shares := position / buy.Close
		pnl := shares * (sell.Close - buy.Close)
		equity += pnl

		trades = append(trades, domain.Trade{
			TradeID:       idhash.ComputeTradeID(s.runID, subset, l.Ticker, l.DateKey(), w.Label()),
			Ticker:        l.Ticker,
			Date:          l.ListingDate,
			Window:        w,
			BuyTime:       buy.Timestamp,
			SellTime:      sell.Timestamp,
			BuyPrice:      buy.Close,
			SellPrice:     sell.Close,
			PositionValue: position,
			Shares:        shares,
			PnL:           pnl,
			PnLPct:        (sell.Close/buy.Close - 1) * 100,
			EquityAfter:   equity,
		})
	}

	s.logger.WithFields(log.Fields{
		"subset":  subset,
		"window":  w.Label(),
		"trades":  len(trades),
		"skipped": skipped,
	}).Debug("simulation complete")

	// 3. Summary
	return Summarize(subset, s.initialCapital, trades), nil
}

// PositionSize returns the capital committed for a trade at equity.
func (s *Simulator) PositionSize(equity float64) float64 {
	return math.Min(equity*s.positionFraction, equity*s.maxPositionFraction)
}

// Summarize builds a PortfolioResult from executed trades.
// With no trades only InitialCapital and FinalEquity are populated.
func Summarize(subset string, initialCapital float64, trades []domain.Trade) *domain.PortfolioResult {
	result := &domain.PortfolioResult{
		Subset:         subset,
		InitialCapital: initialCapital,
		FinalEquity:    initialCapital,
	}
	if len(trades) == 0 {
		return result
	}

	final := trades[len(trades)-1].EquityAfter
	wins := 0
	for _, t := range trades {
		if t.IsWin() {
			wins++
		}
	}

	totalReturn := (final/initialCapital - 1) * 100
	years := trades[len(trades)-1].Date.Sub(trades[0].Date).Hours() / 24 / daysPerYear
	cagr := CAGR(initialCapital, final, years)
	winRate := float64(wins) / float64(len(trades)) * 100
	drawdown := maxDrawdownPct(initialCapital, trades)

	result.FinalEquity = final
	result.TradeCount = len(trades)
	result.Trades = trades
	result.TotalReturnPct = &totalReturn
	result.CAGR = &cagr
	result.WinRate = &winRate
	result.MaxDrawdownPct = &drawdown
	return result
}

// CAGR returns the compound annual growth rate in percent.
// A non-positive span yields 0.
func CAGR(initial, final, years float64) float64 {
	if years <= 0 || initial <= 0 || final <= 0 {
		return 0
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

// maxDrawdownPct is the worst peak-to-trough decline of the equity path.
func maxDrawdownPct(initial float64, trades []domain.Trade) float64 {
	peak := initial
	worst := 0.0
	for _, t := range trades {
		if t.EquityAfter > peak {
			peak = t.EquityAfter
		}
		if dd := (peak - t.EquityAfter) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}
