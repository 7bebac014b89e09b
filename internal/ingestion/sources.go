package ingestion

import (
	"context"
	"errors"
	"sort"

	"ipo-window-lab/internal/domain"
)

// ErrNoData is returned when a source has no bars for a listing day.
var ErrNoData = errors.New("no intraday data")

// SeriesSource provides listing-day intraday bars from an external source.
type SeriesSource interface {
	// Name identifies the source in logs, metrics and IntradaySeries.Source.
	Name() string

	// Fetch returns the bars of the listing day, ordered by timestamp.
	// Returns ErrNoData (possibly wrapped) when the source has nothing for the day.
	Fetch(ctx context.Context, listing *domain.ListingEvent) (*domain.IntradaySeries, error)
}

// SortBars orders bars by timestamp ASC. Bars sharing a timestamp keep their input order.
func SortBars(bars []domain.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
}
