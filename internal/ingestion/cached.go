package ingestion

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

// CachedSource reads series through a BarStore.
// Misses are fetched from the wrapped source and written back.
type CachedSource struct {
	source SeriesSource
	store  storage.BarStore
	logger *log.Entry
}

// NewCachedSource wraps source with a read-through cache in store.
func NewCachedSource(source SeriesSource, store storage.BarStore, logger *log.Entry) *CachedSource {
	if logger == nil {
		logger = log.WithField("component", "ingestion")
	}
	return &CachedSource{source: source, store: store, logger: logger}
}

// Name returns the wrapped source name.
func (s *CachedSource) Name() string { return s.source.Name() }

// Fetch returns the cached series when present.
// Cache read and write failures are logged and do not fail the fetch.
func (s *CachedSource) Fetch(ctx context.Context, listing *domain.ListingEvent) (*domain.IntradaySeries, error) {
	cached, err := s.store.GetSeries(ctx, listing.Ticker, listing.ListingDate)
	switch {
	case err == nil && cached.Len() > 0:
		return cached, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		s.logger.WithField("ticker", listing.Ticker).WithError(err).Warn("bar cache read failed")
	}

	series, err := s.source.Fetch(ctx, listing)
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertSeries(ctx, series); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		s.logger.WithField("ticker", listing.Ticker).WithError(fmt.Errorf("cache write: %w", err)).Warn("bar cache write failed")
	}
	return series, nil
}

var _ SeriesSource = (*CachedSource)(nil)
