package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertSeries stores all bars of a series in one batch.
// MergeTree does not enforce uniqueness, so duplicates are checked explicitly.
func (s *BarStore) InsertSeries(ctx context.Context, series *domain.IntradaySeries) error {
	if series == nil || series.Ticker == "" || len(series.Bars) == 0 {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, series.Ticker, series.Date)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO intraday_bars (
			ticker, listing_date, source, timestamp_ms,
			open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range series.Bars {
		err = batch.Append(
			series.Ticker, series.Date, series.Source, b.Timestamp.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetSeries retrieves a series ordered by timestamp ASC.
func (s *BarStore) GetSeries(ctx context.Context, ticker string, date time.Time) (*domain.IntradaySeries, error) {
	query := `
		SELECT source, timestamp_ms, open, high, low, close, volume
		FROM intraday_bars
		WHERE ticker = ? AND listing_date = toDate(?)
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker, date.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	series, err := scanSeries(rows)
	if err != nil {
		return nil, err
	}
	if len(series.Bars) == 0 {
		return nil, storage.ErrNotFound
	}

	series.Ticker = ticker
	series.Date = date
	return series, nil
}

// exists checks if bars for (ticker, date) exist.
func (s *BarStore) exists(ctx context.Context, ticker string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM intraday_bars
		WHERE ticker = ? AND listing_date = toDate(?)
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, ticker, date.Format(domain.DateLayout)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSeries scans bar rows into a series.
func scanSeries(rows driver.Rows) (*domain.IntradaySeries, error) {
	series := &domain.IntradaySeries{}

	for rows.Next() {
		var (
			b  domain.Bar
			ms int64
		)
		if err := rows.Scan(&series.Source, &ms, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Timestamp = time.UnixMilli(ms).UTC()
		series.Bars = append(series.Bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return series, nil
}
