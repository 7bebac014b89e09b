// Package synthetic generates deterministic IPO-day minute bars.
//
// The path models an opening pop over the offer price, a per-ticker drift and
// volatility, heavier volatility at the open and into the close, a weak pull
// toward 110% of the offer price and a floor at half the offer price.
// The same ticker always produces the same path.
package synthetic

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/ingestion"
)

// SourceName is the IntradaySeries.Source value of generated series.
const SourceName = "synthetic"

const (
	popMin, popMax     = 0.8, 1.5
	volMin, volMax     = 0.003, 0.01
	trendMin, trendMax = -0.0005, 0.0008

	reversionTarget = 1.1
	reversionSpeed  = 0.001
	priceFloor      = 0.5
	wickSigma       = 0.002
	volumeScale     = 100000

	defaultOfferMin, defaultOfferMax = 10.0, 100.0
)

// Generator produces synthetic listing-day series.
// Implements ingestion.SeriesSource interface.
type Generator struct {
	location *time.Location
	open     domain.TimeOfDay
	close    domain.TimeOfDay
}

// GeneratorOptions contains configuration for creating a Generator.
type GeneratorOptions struct {
	Location *time.Location   // exchange location, default UTC
	Open     domain.TimeOfDay // first bar, default 09:30
	Close    domain.TimeOfDay // last bar (inclusive), default 16:00
}

// NewGenerator creates a synthetic series generator.
func NewGenerator(opts GeneratorOptions) *Generator {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	open := opts.Open
	if open == 0 {
		open = domain.NewTimeOfDay(9, 30)
	}
	end := opts.Close
	if end == 0 {
		end = domain.NewTimeOfDay(16, 0)
	}
	return &Generator{location: loc, open: open, close: end}
}

// Name returns SourceName.
func (g *Generator) Name() string { return SourceName }

// Fetch generates the listing-day series. It never returns ErrNoData.
func (g *Generator) Fetch(ctx context.Context, listing *domain.ListingEvent) (*domain.IntradaySeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Generate(listing.Ticker, listing.ListingDate, listing.OfferPrice), nil
}

// Generate builds one minute bar per minute in [open, close].
// A non-positive offerPrice is replaced by a seeded U(10, 100) draw.
func (g *Generator) Generate(ticker string, date time.Time, offerPrice float64) *domain.IntradaySeries {
	rng := newRand(ticker)

	if offerPrice <= 0 {
		offerPrice = uniform(rng, defaultOfferMin, defaultOfferMax)
	}
	pop := uniform(rng, popMin, popMax)
	vol := uniform(rng, volMin, volMax)
	trend := uniform(rng, trendMin, trendMax)

	n := int(g.close-g.open) + 1
	if n < 1 {
		n = 1
	}

	prices := make([]float64, n)
	prices[0] = offerPrice * pop
	start := g.open.On(date, g.location)
	for i := 1; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		reversion := (offerPrice*reversionTarget - prices[i-1]) * reversionSpeed
		change := trend + reversion + vol*volatilityMultiplier(ts.Hour(), ts.Minute())*rng.NormFloat64()
		prices[i] = math.Max(prices[i-1]*(1+change), offerPrice*priceFloor)
	}

	bars := make([]domain.Bar, n)
	for i, p := range prices {
		high := p * (1 + math.Abs(wickSigma*rng.NormFloat64()))
		low := p * (1 - math.Abs(wickSigma*rng.NormFloat64()))
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      p,
			High:      math.Max(high, p),
			Low:       math.Min(low, p),
			Close:     p,
			Volume:    math.Floor(gamma2(rng) * volumeScale),
		}
	}

	return &domain.IntradaySeries{
		Ticker: ticker,
		Date:   date,
		Source: SourceName,
		Bars:   bars,
	}
}

// volatilityMultiplier scales per-minute volatility by time of day.
func volatilityMultiplier(hour, minute int) float64 {
	switch {
	case hour == 9 && minute < 45:
		return 2.0
	case hour < 10:
		return 1.5
	case hour < 12:
		return 1.2
	case hour < 14:
		return 0.8
	case hour >= 15 && minute >= 30:
		return 1.3
	default:
		return 1.0
	}
}

func newRand(ticker string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	return rand.New(rand.NewPCG(h.Sum64(), 0x5eed))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// gamma2 draws Gamma(shape=2, scale=1) as the sum of two unit exponentials.
func gamma2(rng *rand.Rand) float64 {
	return rng.ExpFloat64() + rng.ExpFloat64()
}

var _ ingestion.SeriesSource = (*Generator)(nil)
