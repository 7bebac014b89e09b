// Package benchmark computes the buy-and-hold result of a reference index
// over the backtest period.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/marketdata"
)

// Defaults for the reference index.
const (
	DefaultSymbol               = "SPY"
	DefaultFallbackAnnualReturn = 0.10
	daysPerYear                 = 365.25
)

// ErrNoBenchmarkData is returned by a PriceSource with no prices in range.
var ErrNoBenchmarkData = errors.New("no benchmark price data")

// PriceSource returns the first and last close of symbol within [start, end].
type PriceSource interface {
	CloseRange(ctx context.Context, symbol string, start, end time.Time) (first, last float64, err error)
}

// Calculator computes benchmark results, falling back to an assumed annual
// return when the price source fails or is absent.
type Calculator struct {
	source         PriceSource
	symbol         string
	fallbackAnnual float64
	logger         *log.Entry
}

// CalculatorOptions contains configuration for creating a Calculator.
type CalculatorOptions struct {
	Source               PriceSource // nil forces the fallback
	Symbol               string
	FallbackAnnualReturn *float64 // fraction, e.g. 0.10; nil uses DefaultFallbackAnnualReturn
	Logger               *log.Entry
}

// NewCalculator creates a benchmark calculator.
func NewCalculator(opts CalculatorOptions) *Calculator {
	c := &Calculator{
		source:         opts.Source,
		symbol:         opts.Symbol,
		fallbackAnnual: DefaultFallbackAnnualReturn,
		logger:         opts.Logger,
	}
	if c.symbol == "" {
		c.symbol = DefaultSymbol
	}
	if opts.FallbackAnnualReturn != nil {
		c.fallbackAnnual = *opts.FallbackAnnualReturn
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "benchmark")
	}
	return c
}

// Compute returns the buy-and-hold result for capital over [start, end].
// Price failures never surface as errors; they produce a Fallback result.
func (c *Calculator) Compute(ctx context.Context, start, end time.Time, capital float64) *domain.BenchmarkResult {
	years := end.Sub(start).Hours() / 24 / daysPerYear

	if c.source != nil {
		first, last, err := c.source.CloseRange(ctx, c.symbol, start, end)
		if err == nil && first > 0 && last > 0 {
			return &domain.BenchmarkResult{
				Symbol:         c.symbol,
				StartDate:      start,
				EndDate:        end,
				InitialCapital: capital,
				StartPrice:     first,
				EndPrice:       last,
				FinalValue:     capital * last / first,
				TotalReturnPct: (last/first - 1) * 100,
				CAGR:           cagr(first, last, years),
			}
		}
		c.logger.WithError(err).WithField("symbol", c.symbol).Warn("benchmark prices unavailable, using assumed annual return")
	}

	return c.fallback(start, end, capital, years)
}

func (c *Calculator) fallback(start, end time.Time, capital, years float64) *domain.BenchmarkResult {
	total := 0.0
	if years > 0 {
		total = (math.Pow(1+c.fallbackAnnual, years) - 1) * 100
	}
	return &domain.BenchmarkResult{
		Symbol:         c.symbol,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: capital,
		FinalValue:     capital * (1 + total/100),
		TotalReturnPct: total,
		CAGR:           c.fallbackAnnual * 100,
		Fallback:       true,
	}
}

func cagr(first, last, years float64) float64 {
	if years <= 0 {
		return 0
	}
	return (math.Pow(last/first, 1/years) - 1) * 100
}

// PolygonSource reads daily adjusted closes through a marketdata fetcher.
type PolygonSource struct {
	fetcher marketdata.AggsFetcher
}

// NewPolygonSource creates a daily-close source.
func NewPolygonSource(fetcher marketdata.AggsFetcher) *PolygonSource {
	return &PolygonSource{fetcher: fetcher}
}

// CloseRange returns the first and last daily close in [start, end].
func (s *PolygonSource) CloseRange(ctx context.Context, symbol string, start, end time.Time) (float64, float64, error) {
	bars, err := s.fetcher.FetchAggs(ctx, marketdata.AggsQuery{
		Symbol:   symbol,
		Timespan: marketdata.Day,
		From:     start,
		To:       end,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("fetch %s closes: %w", symbol, err)
	}
	if len(bars) == 0 {
		return 0, 0, ErrNoBenchmarkData
	}
	return bars[0].Close, bars[len(bars)-1].Close, nil
}

var _ PriceSource = (*PolygonSource)(nil)
