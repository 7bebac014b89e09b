package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ListingEvent // keyed by ticker|date
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{
		data: make(map[string]*domain.ListingEvent),
	}
}

func listingKey(l *domain.ListingEvent) string {
	return l.Ticker + "|" + l.DateKey()
}

// InsertBulk adds multiple listings atomically. Fails entire batch on any duplicate.
func (s *ListingStore) InsertBulk(_ context.Context, listings []*domain.ListingEvent) error {
	if len(listings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(listings))

	// First pass: check for duplicates (existing + intra-batch)
	for _, l := range listings {
		if l == nil || l.Ticker == "" || l.ListingDate.IsZero() {
			return storage.ErrInvalidInput
		}
		k := listingKey(l)
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, l := range listings {
		copy := *l
		s.data[listingKey(l)] = &copy
	}

	return nil
}

// GetAll retrieves every listing ordered by listing date, then ticker.
func (s *ListingStore) GetAll(_ context.Context) ([]*domain.ListingEvent, error) {
	return s.filter(func(*domain.ListingEvent) bool { return true }), nil
}

// GetByDateRange retrieves listings within [start, end] (inclusive).
func (s *ListingStore) GetByDateRange(_ context.Context, start, end time.Time) ([]*domain.ListingEvent, error) {
	return s.filter(func(l *domain.ListingEvent) bool {
		return !l.ListingDate.Before(start) && !l.ListingDate.After(end)
	}), nil
}

func (s *ListingStore) filter(keep func(*domain.ListingEvent) bool) []*domain.ListingEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ListingEvent
	for _, l := range s.data {
		if keep(l) {
			copy := *l
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ListingDate.Equal(result[j].ListingDate) {
			return result[i].ListingDate.Before(result[j].ListingDate)
		}
		return result[i].Ticker < result[j].Ticker
	})

	return result
}

var _ storage.ListingStore = (*ListingStore)(nil)
