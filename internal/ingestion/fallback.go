package ingestion

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/domain"
)

// FallbackSource tries a primary source and falls back to a secondary one
// when the primary fails or has no data. Context errors are never masked.
type FallbackSource struct {
	primary   SeriesSource
	secondary SeriesSource
	logger    *log.Entry
}

// NewFallbackSource creates a source chaining primary and secondary.
func NewFallbackSource(primary, secondary SeriesSource, logger *log.Entry) *FallbackSource {
	if logger == nil {
		logger = log.WithField("component", "ingestion")
	}
	return &FallbackSource{primary: primary, secondary: secondary, logger: logger}
}

// Name returns "primary>secondary".
func (s *FallbackSource) Name() string {
	return s.primary.Name() + ">" + s.secondary.Name()
}

// Fetch returns the primary's series, or the secondary's on primary failure.
func (s *FallbackSource) Fetch(ctx context.Context, listing *domain.ListingEvent) (*domain.IntradaySeries, error) {
	series, err := s.primary.Fetch(ctx, listing)
	if err == nil && series.Len() > 0 {
		return series, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	s.logger.WithFields(log.Fields{
		"ticker":   listing.Ticker,
		"date":     listing.DateKey(),
		"primary":  s.primary.Name(),
		"fallback": s.secondary.Name(),
	}).WithError(err).Debug("primary source unavailable, using fallback")

	return s.secondary.Fetch(ctx, listing)
}

var _ SeriesSource = (*FallbackSource)(nil)
