package ingestion

import (
	"context"
	"fmt"
	"time"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/marketdata"
)

// PolygonSourceName is the IntradaySeries.Source value of live series.
const PolygonSourceName = "polygon"

// PolygonSource fetches listing-day 1-minute aggregates from Polygon.io.
type PolygonSource struct {
	fetcher  marketdata.AggsFetcher
	location *time.Location
}

// NewPolygonSource creates a live source. loc is the exchange location
// used to bound the listing day; nil means UTC.
func NewPolygonSource(fetcher marketdata.AggsFetcher, loc *time.Location) *PolygonSource {
	if loc == nil {
		loc = time.UTC
	}
	return &PolygonSource{fetcher: fetcher, location: loc}
}

// Name returns PolygonSourceName.
func (s *PolygonSource) Name() string { return PolygonSourceName }

// Fetch returns minute bars covering the exchange-local listing day.
func (s *PolygonSource) Fetch(ctx context.Context, listing *domain.ListingEvent) (*domain.IntradaySeries, error) {
	y, m, d := listing.ListingDate.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.location)
	to := from.AddDate(0, 0, 1).Add(-time.Millisecond)

	bars, err := s.fetcher.FetchAggs(ctx, marketdata.AggsQuery{
		Symbol:   listing.Ticker,
		Timespan: marketdata.Minute,
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", listing.Ticker, listing.DateKey(), err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", listing.Ticker, listing.DateKey(), ErrNoData)
	}
	SortBars(bars)

	return &domain.IntradaySeries{
		Ticker: listing.Ticker,
		Date:   listing.ListingDate,
		Source: PolygonSourceName,
		Bars:   bars,
	}, nil
}

var _ SeriesSource = (*PolygonSource)(nil)
