package stub

import (
	"context"
	"fmt"
	"sync"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/ingestion"
)

// StubSeriesSource returns fixed in-memory series for testing.
// Series are keyed by ticker and listing date.
// Implements ingestion.SeriesSource interface.
type StubSeriesSource struct {
	name   string
	series map[string]*domain.IntradaySeries
	errs   map[string]error

	mu    sync.Mutex
	calls int
}

// NewStubSeriesSource creates a new stub series source with the given series.
func NewStubSeriesSource(name string, series []*domain.IntradaySeries) *StubSeriesSource {
	s := &StubSeriesSource{
		name:   name,
		series: make(map[string]*domain.IntradaySeries, len(series)),
		errs:   make(map[string]error),
	}
	for _, ser := range series {
		s.series[ser.Key()] = ser
	}
	return s
}

// FailWith makes Fetch return err for the ticker on any date.
func (s *StubSeriesSource) FailWith(ticker string, err error) {
	s.errs[ticker] = err
}

// Calls returns how many times Fetch was invoked.
func (s *StubSeriesSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Name returns the configured source name.
func (s *StubSeriesSource) Name() string { return s.name }

// Fetch returns a copy of the stored series.
// Returns ingestion.ErrNoData for unknown listings.
func (s *StubSeriesSource) Fetch(_ context.Context, listing *domain.ListingEvent) (*domain.IntradaySeries, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err, ok := s.errs[listing.Ticker]; ok {
		return nil, err
	}
	ser, ok := s.series[listing.Key()]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", listing.Ticker, listing.DateKey(), ingestion.ErrNoData)
	}

	out := *ser
	out.Bars = append([]domain.Bar(nil), ser.Bars...)
	if out.Source == "" {
		out.Source = s.name
	}
	return &out, nil
}

var _ ingestion.SeriesSource = (*StubSeriesSource)(nil)
