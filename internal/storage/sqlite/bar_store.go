// Package sqlite provides an on-disk intraday bar cache for single-machine runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS series (
    ticker        TEXT NOT NULL,
    listing_date  TEXT NOT NULL,
    source        TEXT NOT NULL DEFAULT '',
    cached_at     DATETIME NOT NULL,
    PRIMARY KEY (ticker, listing_date)
);

CREATE TABLE IF NOT EXISTS bars (
    ticker        TEXT    NOT NULL,
    listing_date  TEXT    NOT NULL,
    timestamp_ms  INTEGER NOT NULL,
    open          REAL    NOT NULL,
    high          REAL    NOT NULL,
    low           REAL    NOT NULL,
    close         REAL    NOT NULL,
    volume        REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bars_series ON bars(ticker, listing_date, timestamp_ms);
`

// BarStore implements storage.BarStore on a SQLite file (pure Go, no CGo).
type BarStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// NewBarStore opens (or creates) the cache database at path and applies the schema.
func NewBarStore(path string) (*BarStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &BarStore{db: db}, nil
}

// Close closes the database.
func (s *BarStore) Close() error {
	return s.db.Close()
}

// InsertSeries stores a series in one transaction. Returns ErrDuplicateKey if cached.
func (s *BarStore) InsertSeries(ctx context.Context, series *domain.IntradaySeries) error {
	if series == nil || series.Ticker == "" || len(series.Bars) == 0 {
		return storage.ErrInvalidInput
	}
	day := series.Date.Format(domain.DateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM series WHERE ticker = ? AND listing_date = ?`,
		series.Ticker, day,
	).Scan(&n); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if n > 0 {
		return storage.ErrDuplicateKey
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO series (ticker, listing_date, source, cached_at) VALUES (?, ?, ?, ?)`,
		series.Ticker, day, series.Source, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (ticker, listing_date, timestamp_ms, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare bar insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range series.Bars {
		if _, err := stmt.ExecContext(ctx,
			series.Ticker, day, b.Timestamp.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		); err != nil {
			return fmt.Errorf("insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetSeries retrieves a cached series. Returns ErrNotFound if absent.
func (s *BarStore) GetSeries(ctx context.Context, ticker string, date time.Time) (*domain.IntradaySeries, error) {
	day := date.Format(domain.DateLayout)

	series := &domain.IntradaySeries{Ticker: ticker, Date: date}
	err := s.db.QueryRowContext(ctx,
		`SELECT source FROM series WHERE ticker = ? AND listing_date = ?`,
		ticker, day,
	).Scan(&series.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE ticker = ? AND listing_date = ?
		ORDER BY timestamp_ms ASC
	`, ticker, day)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b  domain.Bar
			ms int64
		)
		if err := rows.Scan(&ms, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
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
