package memory

import (
	"context"
	"sort"
	"sync"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.RunID] = &copy
	return nil
}

// GetByID retrieves a run summary. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// List retrieves run summaries ordered by started_at DESC.
func (s *RunStore) List(_ context.Context) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunSummary, 0, len(s.data))
	for _, r := range s.data {
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

var _ storage.RunStore = (*RunStore)(nil)

// WindowStatStore is an in-memory implementation of storage.WindowStatStore.
type WindowStatStore struct {
	mu   sync.RWMutex
	data map[string][]domain.WindowStatistic // keyed by run_id, rank order
}

// NewWindowStatStore creates a new in-memory window statistic store.
func NewWindowStatStore() *WindowStatStore {
	return &WindowStatStore{
		data: make(map[string][]domain.WindowStatistic),
	}
}

// InsertRanked stores the ranked table of a run.
func (s *WindowStatStore) InsertRanked(_ context.Context, runID string, stats []domain.WindowStatistic) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[runID] = append([]domain.WindowStatistic{}, stats...)
	return nil
}

// GetByRunID retrieves statistics of a run in rank order.
func (s *WindowStatStore) GetByRunID(_ context.Context, runID string) ([]domain.WindowStatistic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.WindowStatistic{}, s.data[runID]...), nil
}

var _ storage.WindowStatStore = (*WindowStatStore)(nil)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	trades map[string][]domain.Trade // keyed by run_id|subset
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		ids:    make(map[string]struct{}),
		trades: make(map[string][]domain.Trade),
	}
}

// InsertBulk adds the trades of one subset atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, runID, subset string, trades []domain.Trade) error {
	if runID == "" || subset == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for id := range batchKeys {
		s.ids[id] = struct{}{}
	}
	k := runID + "|" + subset
	s.trades[k] = append(s.trades[k], trades...)
	return nil
}

// GetByRunSubset retrieves trades in execution order.
func (s *TradeStore) GetByRunSubset(_ context.Context, runID, subset string) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Trade{}, s.trades[runID+"|"+subset]...), nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
