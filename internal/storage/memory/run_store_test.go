package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

func TestRunStore_InsertGetList(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.Insert(ctx, &domain.RunSummary{RunID: "old", Outcome: domain.OutcomeNoStrategy, StartedAt: base})
	_ = store.Insert(ctx, &domain.RunSummary{RunID: "new", Outcome: domain.OutcomeStrategySelected, StartedAt: base.Add(time.Hour)})

	got, err := store.GetByID(ctx, "new")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Outcome != domain.OutcomeStrategySelected {
		t.Errorf("unexpected outcome %s", got.Outcome)
	}

	runs, _ := store.List(ctx)
	if len(runs) != 2 || runs[0].RunID != "new" {
		t.Errorf("expected newest run first, got %+v", runs)
	}

	if err := store.Insert(ctx, &domain.RunSummary{RunID: "new"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWindowStatStore_RankOrder(t *testing.T) {
	store := NewWindowStatStore()
	ctx := context.Background()

	stats := []domain.WindowStatistic{
		{Window: domain.TradingWindow{Buy: domain.NewTimeOfDay(10, 0), Sell: domain.NewTimeOfDay(11, 0)}, MeanReturn: 3},
		{Window: domain.TradingWindow{Buy: domain.NewTimeOfDay(9, 30), Sell: domain.NewTimeOfDay(10, 0)}, MeanReturn: 1},
	}
	if err := store.InsertRanked(ctx, "run1", stats); err != nil {
		t.Fatalf("InsertRanked failed: %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run1")
	if len(got) != 2 || got[0].MeanReturn != 3 {
		t.Errorf("expected rank order preserved, got %+v", got)
	}
	if err := store.InsertRanked(ctx, "run1", stats); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_InsertBulk(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trades := []domain.Trade{{TradeID: "t1", Ticker: "A"}, {TradeID: "t2", Ticker: "B"}}
	if err := store.InsertBulk(ctx, "run1", domain.SubsetTrain, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, _ := store.GetByRunSubset(ctx, "run1", domain.SubsetTrain)
	if len(got) != 2 || got[0].Ticker != "A" {
		t.Errorf("expected execution order preserved, got %+v", got)
	}
	if other, _ := store.GetByRunSubset(ctx, "run1", domain.SubsetTest); len(other) != 0 {
		t.Errorf("expected no test trades, got %d", len(other))
	}

	err := store.InsertBulk(ctx, "run1", domain.SubsetTest, []domain.Trade{{TradeID: "t3"}, {TradeID: "t1"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if got, _ := store.GetByRunSubset(ctx, "run1", domain.SubsetTest); len(got) != 0 {
		t.Error("expected failed batch to insert nothing")
	}
}
