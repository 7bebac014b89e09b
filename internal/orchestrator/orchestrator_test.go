package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"ipo-window-lab/internal/benchmark"
	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/ingestion/stub"
	"ipo-window-lab/internal/storage/memory"
	"ipo-window-lab/internal/window"
)

const eps = 1e-9

// pricedListings builds n listings on consecutive days. Each series has
// only a 10:00 bar at 100 and an 11:00 bar at 102, so 10:00-11:00 is the
// only window with samples and it returns +2% for every ticker.
func pricedListings(n int) ([]domain.ListingEvent, []*domain.IntradaySeries) {
	base := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)
	listings := make([]domain.ListingEvent, n)
	series := make([]*domain.IntradaySeries, n)
	for i := 0; i < n; i++ {
		date := base.AddDate(0, 0, i)
		ticker := fmt.Sprintf("IPO%02d", i)
		listings[i] = domain.ListingEvent{Ticker: ticker, Company: ticker, ListingDate: date, OfferPrice: 20}
		series[i] = &domain.IntradaySeries{
			Ticker: ticker,
			Date:   date,
			Bars: []domain.Bar{
				{Timestamp: date.Add(10 * time.Hour), Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000},
				{Timestamp: date.Add(11 * time.Hour), Open: 102, High: 102, Low: 102, Close: 102, Volume: 1000},
			},
		}
	}
	return listings, series
}

func testRunConfig() RunConfig {
	return RunConfig{
		SplitRatio:          0.7,
		InitialCapital:      100000,
		PositionFraction:    0.02,
		MaxPositionFraction: 0.10,
		MinSamples:          10,
		Workers:             2,
		Grid:                window.DefaultGrid(),
		Location:            time.UTC,
	}
}

type fixedPrices struct {
	first, last float64
	err         error
}

func (f fixedPrices) CloseRange(_ context.Context, _ string, _, _ time.Time) (float64, float64, error) {
	return f.first, f.last, f.err
}

func TestOrchestrator_Run_SelectsWindow(t *testing.T) {
	listings, series := pricedListings(20)
	orch := New(Options{Source: stub.NewStubSeriesSource("stub", series)})

	res, err := orch.Run(context.Background(), testRunConfig(), listings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Split.TrainCount != 14 || res.Split.TestCount != 6 {
		t.Errorf("expected 14/6 split, got %d/%d", res.Split.TrainCount, res.Split.TestCount)
	}
	if res.Outcome != domain.OutcomeStrategySelected {
		t.Fatalf("expected %s, got %s", domain.OutcomeStrategySelected, res.Outcome)
	}
	if len(res.RankedWindows) != 1 {
		t.Errorf("expected 1 supported window, got %d", len(res.RankedWindows))
	}

	sel := res.Selected
	if got := sel.Window.Label(); got != "10:00-11:00" {
		t.Errorf("expected 10:00-11:00, got %s", got)
	}
	if math.Abs(sel.MeanReturn-2) > eps {
		t.Errorf("expected mean 2, got %v", sel.MeanReturn)
	}
	if sel.WinRate != 100 {
		t.Errorf("expected win rate 100, got %v", sel.WinRate)
	}
	if sel.StdReturn != 0 || sel.Sharpe != 0 {
		t.Errorf("expected zero std and sharpe, got %v / %v", sel.StdReturn, sel.Sharpe)
	}
	if sel.SampleCount != 14 {
		t.Errorf("expected 14 samples (train only), got %d", sel.SampleCount)
	}

	if res.Train.TradeCount != 14 || res.Test.TradeCount != 6 {
		t.Errorf("expected 14/6 trades, got %d/%d", res.Train.TradeCount, res.Test.TradeCount)
	}
	wantTrain := 100000 * math.Pow(1+0.02*0.02, 14)
	if math.Abs(res.Train.FinalEquity-wantTrain) > 1e-6 {
		t.Errorf("expected train final %v, got %v", wantTrain, res.Train.FinalEquity)
	}
	wantTest := 100000 * math.Pow(1+0.02*0.02, 6)
	if math.Abs(res.Test.FinalEquity-wantTest) > 1e-6 {
		t.Errorf("expected test final %v, got %v", wantTest, res.Test.FinalEquity)
	}
	if res.Train.WinRate == nil || *res.Train.WinRate != 100 {
		t.Error("expected train win rate 100")
	}

	if res.Benchmark == nil || !res.Benchmark.Fallback {
		t.Error("expected fallback benchmark without a price source")
	}
	if res.RunID == "" {
		t.Error("expected run id")
	}
	if res.FinishedAt.Before(res.StartedAt) {
		t.Error("expected finished after started")
	}
}

func TestOrchestrator_Run_NoStrategy(t *testing.T) {
	listings, series := pricedListings(10) // 7 train listings < 10
	orch := New(Options{Source: stub.NewStubSeriesSource("stub", series)})

	res, err := orch.Run(context.Background(), testRunConfig(), listings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != domain.OutcomeNoStrategy {
		t.Fatalf("expected %s, got %s", domain.OutcomeNoStrategy, res.Outcome)
	}
	if res.Selected != nil {
		t.Error("expected no selected window")
	}
	if res.Train != nil || res.Test != nil {
		t.Error("expected no portfolios")
	}
	if len(res.RankedWindows) != 0 {
		t.Errorf("expected empty ranking, got %d", len(res.RankedWindows))
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning")
	}
	if res.Benchmark == nil {
		t.Error("expected benchmark even without a strategy")
	}
}

func TestOrchestrator_Run_TrainOnlyRanking(t *testing.T) {
	listings, series := pricedListings(20)
	// Test tickers lose 10%; the ranking must not see them.
	for _, s := range series[14:] {
		s.Bars[1].Close = 90
	}
	orch := New(Options{Source: stub.NewStubSeriesSource("stub", series)})

	res, err := orch.Run(context.Background(), testRunConfig(), listings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.Selected.MeanReturn-2) > eps {
		t.Errorf("expected train-only mean 2, got %v", res.Selected.MeanReturn)
	}
	if *res.Test.WinRate != 0 {
		t.Errorf("expected test win rate 0, got %v", *res.Test.WinRate)
	}
	if res.Test.FinalEquity >= 100000 {
		t.Errorf("expected test loss, got %v", res.Test.FinalEquity)
	}
}

func TestOrchestrator_Run_MissingSeries(t *testing.T) {
	listings, series := pricedListings(20)
	src := stub.NewStubSeriesSource("stub", series[1:])
	src.FailWith("IPO01", errors.New("boom"))
	orch := New(Options{Source: src})

	res, err := orch.Run(context.Background(), testRunConfig(), listings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SeriesLoaded != 18 {
		t.Errorf("expected 18 series, got %d", res.SeriesLoaded)
	}
	if res.Selected.SampleCount != 12 {
		t.Errorf("expected 12 samples, got %d", res.Selected.SampleCount)
	}
	if res.Train.TradeCount != 12 {
		t.Errorf("expected 12 train trades, got %d", res.Train.TradeCount)
	}
}

func TestOrchestrator_Run_InvalidConfig(t *testing.T) {
	listings, series := pricedListings(5)
	orch := New(Options{Source: stub.NewStubSeriesSource("stub", series)})

	mutations := map[string]func(*RunConfig){
		"split zero":         func(c *RunConfig) { c.SplitRatio = 0 },
		"split one":          func(c *RunConfig) { c.SplitRatio = 1 },
		"capital":            func(c *RunConfig) { c.InitialCapital = 0 },
		"position":           func(c *RunConfig) { c.PositionFraction = 1.5 },
		"max position":       func(c *RunConfig) { c.MaxPositionFraction = 2 },
		"max position zero":  func(c *RunConfig) { c.MaxPositionFraction = 0 },
		"grid":               func(c *RunConfig) { c.Grid.StepMinutes = 0 },
		"benchmark reversed": func(c *RunConfig) { c.BenchmarkStart, c.BenchmarkEnd = time.Now(), time.Now().AddDate(-1, 0, 0) },
	}
	for name, mutate := range mutations {
		cfg := testRunConfig()
		mutate(&cfg)
		if _, err := orch.Run(context.Background(), cfg, listings, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestOrchestrator_Run_EmptyUniverse(t *testing.T) {
	orch := New(Options{Source: stub.NewStubSeriesSource("stub", nil)})
	if _, err := orch.Run(context.Background(), testRunConfig(), nil, nil); !errors.Is(err, ErrEmptyUniverse) {
		t.Fatalf("expected ErrEmptyUniverse, got %v", err)
	}
}

func TestOrchestrator_Run_Persists(t *testing.T) {
	listings, series := pricedListings(20)
	runs := memory.NewRunStore()
	stats := memory.NewWindowStatStore()
	trades := memory.NewTradeStore()
	orch := New(Options{
		Source:          stub.NewStubSeriesSource("stub", series),
		RunStore:        runs,
		WindowStatStore: stats,
		TradeStore:      trades,
	})

	cfg := testRunConfig()
	cfg.ConfigLabel = "test"
	res, err := orch.Run(context.Background(), cfg, listings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	summary, err := runs.GetByID(ctx, res.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if summary.Outcome != domain.OutcomeStrategySelected || summary.SelectedWindow == nil {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.ConfigJSON != "test" {
		t.Errorf("expected config label, got %q", summary.ConfigJSON)
	}

	ranked, err := stats.GetByRunID(ctx, res.RunID)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if len(ranked) != 1 {
		t.Errorf("expected 1 stored statistic, got %d", len(ranked))
	}

	trainTrades, err := trades.GetByRunSubset(ctx, res.RunID, domain.SubsetTrain)
	if err != nil {
		t.Fatalf("get trades: %v", err)
	}
	if len(trainTrades) != 14 {
		t.Errorf("expected 14 stored train trades, got %d", len(trainTrades))
	}
}

func TestOrchestrator_Run_Progress(t *testing.T) {
	listings, series := pricedListings(20)
	orch := New(Options{Source: stub.NewStubSeriesSource("stub", series)})

	var reports []float64
	progress := func(f float64, _ string) { reports = append(reports, f) }

	if _, err := orch.Run(context.Background(), testRunConfig(), listings, progress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) == 0 {
		t.Fatal("expected progress reports")
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("progress decreased at %d: %v -> %v", i, reports[i-1], reports[i])
		}
	}
	if last := reports[len(reports)-1]; last != 1 {
		t.Errorf("expected final progress 1, got %v", last)
	}
}

func TestOrchestrator_Run_Split100(t *testing.T) {
	listings, series := pricedListings(100)
	orch := New(Options{Source: stub.NewStubSeriesSource("stub", series)})

	res, err := orch.Run(context.Background(), testRunConfig(), listings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Split.TrainCount != 70 || res.Split.TestCount != 30 {
		t.Errorf("expected 70/30, got %d/%d", res.Split.TrainCount, res.Split.TestCount)
	}
	if !res.Split.TrainEnd.Before(*res.Split.TestStart) {
		t.Error("expected train dates before test dates")
	}
}

func TestOrchestrator_Run_BenchmarkFromPrices(t *testing.T) {
	listings, series := pricedListings(20)
	orch := New(Options{
		Source:    stub.NewStubSeriesSource("stub", series),
		Benchmark: benchmark.NewCalculator(benchmark.CalculatorOptions{Source: fixedPrices{first: 100, last: 150}}),
	})

	cfg := testRunConfig()
	cfg.BenchmarkStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.BenchmarkEnd = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := orch.Run(context.Background(), cfg, listings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := res.Benchmark
	if b.Fallback {
		t.Fatal("expected price-based benchmark")
	}
	if math.Abs(b.FinalValue-150000) > 1e-6 {
		t.Errorf("expected final 150000, got %v", b.FinalValue)
	}
	if !b.StartDate.Equal(cfg.BenchmarkStart) {
		t.Errorf("expected configured start, got %v", b.StartDate)
	}
}

func TestOrchestrator_Run_Canceled(t *testing.T) {
	listings, series := pricedListings(20)
	orch := New(Options{Source: stub.NewStubSeriesSource("stub", series)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := orch.Run(ctx, testRunConfig(), listings, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOrchestrator_RunID_Deterministic(t *testing.T) {
	listings, series := pricedListings(20)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	newOrch := func() *Orchestrator {
		return New(Options{Source: stub.NewStubSeriesSource("stub", series), Now: func() time.Time { return fixed }})
	}

	a, err := newOrch().Run(context.Background(), testRunConfig(), listings, nil)
	if err != nil {
		t.Fatalf("run a: %v", err)
	}
	b, err := newOrch().Run(context.Background(), testRunConfig(), listings, nil)
	if err != nil {
		t.Fatalf("run b: %v", err)
	}
	if a.RunID != b.RunID {
		t.Errorf("expected same run id, got %s and %s", a.RunID, b.RunID)
	}
	if a.Train.Trades[0].TradeID != b.Train.Trades[0].TradeID {
		t.Error("expected deterministic trade ids")
	}
}

// relistedUniverse lists T00..T09 twice: in 2021 at +50% on 10:00-11:00 and
// in 2020 at 0%. The 2021 rows come first in the input.
func relistedUniverse() ([]domain.ListingEvent, []*domain.IntradaySeries) {
	var (
		listings []domain.ListingEvent
		series   []*domain.IntradaySeries
	)
	add := func(ticker string, date time.Time, sell float64) {
		listings = append(listings, domain.ListingEvent{Ticker: ticker, Company: ticker, ListingDate: date, OfferPrice: 20})
		series = append(series, &domain.IntradaySeries{
			Ticker: ticker,
			Date:   date,
			Bars: []domain.Bar{
				{Timestamp: date.Add(10 * time.Hour), Open: 100, High: 100, Low: 100, Close: 100},
				{Timestamp: date.Add(11 * time.Hour), Open: sell, High: sell, Low: sell, Close: sell},
			},
		})
	}
	for i := 0; i < 10; i++ {
		add(fmt.Sprintf("T%02d", i), time.Date(2021, 3, 1+i, 0, 0, 0, 0, time.UTC), 150)
	}
	for i := 0; i < 10; i++ {
		add(fmt.Sprintf("T%02d", i), time.Date(2020, 3, 1+i, 0, 0, 0, 0, time.UTC), 100)
	}
	return listings, series
}

func TestOrchestrator_Run_RelistedTickerRanksOnTrainingDateOnly(t *testing.T) {
	listings, series := relistedUniverse()
	cfg := testRunConfig()
	cfg.SplitRatio = 0.5

	res, err := New(Options{Source: stub.NewStubSeriesSource("stub", series)}).Run(context.Background(), cfg, listings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.SeriesLoaded != 20 {
		t.Errorf("expected one series per listing (20), got %d", res.SeriesLoaded)
	}
	if res.Selected == nil {
		t.Fatal("expected a selected window")
	}
	if res.Selected.SampleCount != 10 {
		t.Errorf("expected 10 training samples, got %d", res.Selected.SampleCount)
	}
	if math.Abs(res.Selected.MeanReturn) > eps {
		t.Errorf("expected training mean 0 from the 2020 listings, got %v", res.Selected.MeanReturn)
	}

	if math.Abs(res.Train.FinalEquity-100000) > 1e-6 {
		t.Errorf("expected flat train equity, got %v", res.Train.FinalEquity)
	}
	wantTest := 100000 * math.Pow(1.01, 10)
	if math.Abs(res.Test.FinalEquity-wantTest) > 1e-6 {
		t.Errorf("expected test final %v, got %v", wantTest, res.Test.FinalEquity)
	}
}
