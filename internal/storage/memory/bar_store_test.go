package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

func TestBarStore_InsertAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	day := date(2021, 3, 10)

	series := &domain.IntradaySeries{
		Ticker: "ABC",
		Date:   day,
		Source: "synthetic",
		Bars: []domain.Bar{
			{Timestamp: day.Add(10 * time.Hour), Close: 2},
			{Timestamp: day.Add(9*time.Hour + 30*time.Minute), Close: 1},
		},
	}
	if err := store.InsertSeries(ctx, series); err != nil {
		t.Fatalf("InsertSeries failed: %v", err)
	}

	// Mutating the input must not affect stored bars.
	series.Bars[0].Close = 99

	got, err := store.GetSeries(ctx, "ABC", day)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if len(got.Bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(got.Bars))
	}
	if got.Bars[0].Close != 1 || got.Bars[1].Close != 2 {
		t.Errorf("expected bars ordered by time with original closes, got %v, %v", got.Bars[0].Close, got.Bars[1].Close)
	}
	if got.Source != "synthetic" {
		t.Errorf("expected source synthetic, got %q", got.Source)
	}
}

func TestBarStore_Errors(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	day := date(2021, 3, 10)

	if _, err := store.GetSeries(ctx, "NONE", day); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.InsertSeries(ctx, &domain.IntradaySeries{Ticker: "ABC", Date: day}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty series, got %v", err)
	}

	s := &domain.IntradaySeries{Ticker: "ABC", Date: day, Bars: []domain.Bar{{Timestamp: day, Close: 1}}}
	_ = store.InsertSeries(ctx, s)
	if err := store.InsertSeries(ctx, s); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}
