package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

// InsertBulk adds multiple listings atomically. Fails entire batch on any duplicate.
func (s *ListingStore) InsertBulk(ctx context.Context, listings []*domain.ListingEvent) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO listings (ticker, listing_date, company, offer_price)
		VALUES ($1, $2, $3, $4)
	`

	for _, l := range listings {
		if l == nil || l.Ticker == "" || l.ListingDate.IsZero() {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query, l.Ticker, l.ListingDate, l.Company, l.OfferPrice)
		if err != nil {
			return storeError("insert listing "+l.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetAll retrieves every listing ordered by listing date, then ticker.
func (s *ListingStore) GetAll(ctx context.Context) ([]*domain.ListingEvent, error) {
	query := `
		SELECT ticker, listing_date, company, offer_price
		FROM listings
		ORDER BY listing_date ASC, ticker ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetByDateRange retrieves listings within [start, end] (inclusive).
func (s *ListingStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.ListingEvent, error) {
	query := `
		SELECT ticker, listing_date, company, offer_price
		FROM listings
		WHERE listing_date >= $1 AND listing_date <= $2
		ORDER BY listing_date ASC, ticker ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get listings by date range: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// scanListings scans multiple rows into a slice of ListingEvent.
func scanListings(rows pgx.Rows) ([]*domain.ListingEvent, error) {
	var listings []*domain.ListingEvent

	for rows.Next() {
		var l domain.ListingEvent
		if err := rows.Scan(&l.Ticker, &l.ListingDate, &l.Company, &l.OfferPrice); err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		l.ListingDate = l.ListingDate.UTC()
		listings = append(listings, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}

	return listings, nil
}
