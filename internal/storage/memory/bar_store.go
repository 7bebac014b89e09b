package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.IntradaySeries // keyed by ticker|date
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.IntradaySeries),
	}
}

func seriesKey(ticker string, date time.Time) string {
	return ticker + "|" + date.Format(domain.DateLayout)
}

// InsertSeries stores a series. Returns ErrDuplicateKey if (ticker, date) exists.
func (s *BarStore) InsertSeries(_ context.Context, series *domain.IntradaySeries) error {
	if series == nil || series.Ticker == "" || len(series.Bars) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := seriesKey(series.Ticker, series.Date)
	if _, exists := s.data[k]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[k] = cloneSeries(series)
	return nil
}

// GetSeries retrieves a series ordered by timestamp. Returns ErrNotFound if absent.
func (s *BarStore) GetSeries(_ context.Context, ticker string, date time.Time) (*domain.IntradaySeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, exists := s.data[seriesKey(ticker, date)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	out := cloneSeries(series)
	sort.SliceStable(out.Bars, func(i, j int) bool {
		return out.Bars[i].Timestamp.Before(out.Bars[j].Timestamp)
	})
	return out, nil
}

func cloneSeries(s *domain.IntradaySeries) *domain.IntradaySeries {
	out := *s
	out.Bars = make([]domain.Bar, len(s.Bars))
	copy(out.Bars, s.Bars)
	return &out
}

var _ storage.BarStore = (*BarStore)(nil)
