package storage

import (
	"context"
	"time"

	"ipo-window-lab/internal/domain"
)

// ListingStore provides access to listings storage.
type ListingStore interface {
	// InsertBulk adds multiple listings atomically.
	// Returns ErrDuplicateKey if any (ticker, listing_date) exists, within or outside the batch.
	InsertBulk(ctx context.Context, listings []*domain.ListingEvent) error

	// GetAll retrieves every listing, ordered by listing_date ASC, ticker ASC.
	GetAll(ctx context.Context) ([]*domain.ListingEvent, error)

	// GetByDateRange retrieves listings with listing_date within [start, end] (inclusive).
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.ListingEvent, error)
}

// BarStore provides access to intraday_bars storage.
type BarStore interface {
	// InsertSeries stores all bars of a listing-day series.
	// Returns ErrDuplicateKey if bars for (ticker, date) already exist.
	// Returns ErrInvalidInput for a nil or empty series.
	InsertSeries(ctx context.Context, s *domain.IntradaySeries) error

	// GetSeries retrieves a series ordered by timestamp ASC.
	// Returns ErrNotFound if no bars exist for (ticker, date).
	GetSeries(ctx context.Context, ticker string, date time.Time) (*domain.IntradaySeries, error)
}

// RunStore provides access to runs storage.
type RunStore interface {
	// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunSummary) error

	// GetByID retrieves a run summary. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// List retrieves run summaries ordered by started_at DESC.
	List(ctx context.Context) ([]*domain.RunSummary, error)
}

// WindowStatStore provides access to window_statistics storage.
type WindowStatStore interface {
	// InsertRanked stores the ranked table of a run; rank is the slice position.
	// Returns ErrDuplicateKey if the run already has statistics.
	InsertRanked(ctx context.Context, runID string, stats []domain.WindowStatistic) error

	// GetByRunID retrieves statistics of a run ordered by rank ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.WindowStatistic, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// InsertBulk adds the trades of one subset atomically; seq is the slice position.
	// Returns ErrDuplicateKey if any trade_id exists.
	InsertBulk(ctx context.Context, runID, subset string, trades []domain.Trade) error

	// GetByRunSubset retrieves trades in execution order.
	GetByRunSubset(ctx context.Context, runID, subset string) ([]domain.Trade, error)
}
