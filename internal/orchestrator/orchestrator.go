// Package orchestrator sequences a backtest run.
// Flow: split → collect series → rank on train → simulate train/test → benchmark → persist
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/benchmark"
	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/idhash"
	"ipo-window-lab/internal/ingestion"
	"ipo-window-lab/internal/metrics"
	"ipo-window-lab/internal/observability"
	"ipo-window-lab/internal/simulation"
	"ipo-window-lab/internal/storage"
	"ipo-window-lab/internal/universe"
	"ipo-window-lab/internal/window"
)

// Errors returned before any computation proceeds.
var (
	ErrInvalidConfig = errors.New("invalid run config")
	ErrEmptyUniverse = errors.New("empty universe")
)

// Progress bands of the run phases.
const (
	progressCollectEnd  = 0.50
	progressRankEnd     = 0.80
	progressTrainEnd    = 0.88
	progressTestEnd     = 0.95
	progressBenchmarkAt = 0.97
)

// Orchestrator coordinates backtest runs. It holds collaborators only;
// all per-run state lives in a runContext created by Run.
type Orchestrator struct {
	source     ingestion.SeriesSource
	benchmark  *benchmark.Calculator
	runStore   storage.RunStore
	statStore  storage.WindowStatStore
	tradeStore storage.TradeStore
	metrics    *observability.Metrics
	logger     *log.Entry
	now        func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Source ingestion.SeriesSource

	// Optional; nil Benchmark uses the assumed annual return only
	Benchmark *benchmark.Calculator

	// Optional persistence; each store is skipped when nil
	RunStore        storage.RunStore
	WindowStatStore storage.WindowStatStore
	TradeStore      storage.TradeStore

	Metrics *observability.Metrics
	Logger  *log.Entry
	Now     func() time.Time // default time.Now
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		source:     opts.Source,
		benchmark:  opts.Benchmark,
		runStore:   opts.RunStore,
		statStore:  opts.WindowStatStore,
		tradeStore: opts.TradeStore,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if o.benchmark == nil {
		o.benchmark = benchmark.NewCalculator(benchmark.CalculatorOptions{})
	}
	if o.logger == nil {
		o.logger = log.WithField("component", "orchestrator")
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// RunConfig parameterizes one run.
type RunConfig struct {
	SplitRatio          float64
	InitialCapital      float64
	PositionFraction    float64
	MaxPositionFraction float64 // in (0,1], see simulation.DefaultMaxPositionFraction
	MinSamples          int     // default metrics.DefaultMinSamples
	Workers             int
	Grid                window.Grid
	Location            *time.Location // exchange time zone, default UTC

	// Benchmark period; zero values use the universe date span
	BenchmarkStart time.Time
	BenchmarkEnd   time.Time

	// Label recorded with the run, e.g. the redacted YAML configuration
	ConfigLabel string
}

// Validate checks the run parameters. Errors wrap ErrInvalidConfig.
func (c RunConfig) Validate() error {
	if c.SplitRatio <= 0 || c.SplitRatio >= 1 {
		return fmt.Errorf("%w: split ratio %v not in (0,1)", ErrInvalidConfig, c.SplitRatio)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital %v", ErrInvalidConfig, c.InitialCapital)
	}
	if c.PositionFraction <= 0 || c.PositionFraction > 1 {
		return fmt.Errorf("%w: position fraction %v", ErrInvalidConfig, c.PositionFraction)
	}
	if c.MaxPositionFraction <= 0 || c.MaxPositionFraction > 1 {
		return fmt.Errorf("%w: max position fraction %v", ErrInvalidConfig, c.MaxPositionFraction)
	}
	if c.MinSamples < 0 {
		return fmt.Errorf("%w: min samples %d", ErrInvalidConfig, c.MinSamples)
	}
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !c.BenchmarkStart.IsZero() && !c.BenchmarkEnd.IsZero() && c.BenchmarkEnd.Before(c.BenchmarkStart) {
		return fmt.Errorf("%w: benchmark end before start", ErrInvalidConfig)
	}
	return nil
}

// fingerprint is the stable identity of the run parameters.
func (c RunConfig) fingerprint() string {
	loc := "UTC"
	if c.Location != nil {
		loc = c.Location.String()
	}
	b, _ := json.Marshal(struct {
		SplitRatio          float64 `json:"split_ratio"`
		InitialCapital      float64 `json:"initial_capital"`
		PositionFraction    float64 `json:"position_fraction"`
		MaxPositionFraction float64 `json:"max_position_fraction"`
		MinSamples          int     `json:"min_samples"`
		Open                string  `json:"open"`
		Close               string  `json:"close"`
		Step                int     `json:"step_minutes"`
		Location            string  `json:"location"`
	}{c.SplitRatio, c.InitialCapital, c.PositionFraction, c.MaxPositionFraction, c.MinSamples,
		c.Grid.Open.String(), c.Grid.Close.String(), c.Grid.StepMinutes, loc})
	return string(b)
}

// runContext carries the state of one run between phases.
type runContext struct {
	id       string
	cfg      RunConfig
	progress domain.ProgressFunc
	logger   *log.Entry

	train  []domain.ListingEvent
	test   []domain.ListingEvent
	series map[string]*domain.IntradaySeries // keyed by ListingEvent.Key

	result *domain.RunResult
}

// Run executes one backtest over listings.
// Phases:
//  1. Validate configuration and universe
//  2. Split chronologically into train and test
//  3. Collect intraday series for the whole universe
//  4. Rank windows on the training series only
//  5. Simulate the selected window on train and test
//  6. Compute the benchmark
//  7. Persist the run
//
// A run with no supported window completes with OutcomeNoStrategy.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig, listings []domain.ListingEvent, progress domain.ProgressFunc) (*domain.RunResult, error) {
	// Phase 1: Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, ErrEmptyUniverse
	}
	if o.source == nil {
		return nil, fmt.Errorf("%w: no series source", ErrInvalidConfig)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	startedAt := o.now().UTC()
	rc := &runContext{
		id:       idhash.ComputeRunID(cfg.fingerprint(), startedAt),
		cfg:      cfg,
		progress: progress,
		result:   &domain.RunResult{StartedAt: startedAt},
	}
	rc.result.RunID = rc.id
	rc.logger = o.logger.WithField("run_id", rc.id)

	o.metrics.RunStarted()
	res, err := o.run(ctx, rc, listings)
	if err != nil {
		o.metrics.RecordRun("error", o.now())
		return nil, err
	}
	o.metrics.RecordRun(string(res.Outcome), res.FinishedAt)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, rc *runContext, listings []domain.ListingEvent) (*domain.RunResult, error) {
	res := rc.result

	// Phase 2: Split
	var err error
	rc.train, rc.test, err = universe.Split(listings, rc.cfg.SplitRatio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	res.Split = universe.Describe(rc.train, rc.test)
	rc.logger.WithFields(log.Fields{
		"train": res.Split.TrainCount,
		"test":  res.Split.TestCount,
	}).Info("Phase 2: universe split")
	rc.progress.Report(0.02, fmt.Sprintf("Split %d train / %d test", res.Split.TrainCount, res.Split.TestCount))

	// Phase 3: Collect series
	if err := o.phase("collect", func() error { return o.collect(ctx, rc, listings) }); err != nil {
		return nil, fmt.Errorf("phase 3 (collect series) failed: %w", err)
	}

	// Phase 4: Rank on train only
	if err := o.phase("rank", func() error { return o.rank(ctx, rc) }); err != nil {
		return nil, fmt.Errorf("phase 4 (rank windows) failed: %w", err)
	}

	if res.Selected == nil {
		res.Outcome = domain.OutcomeNoStrategy
		res.Warnings = append(res.Warnings, fmt.Sprintf("no window reached %d samples in the training subset", o.minSamples(rc.cfg)))
		rc.logger.Warn("Phase 4: no statistically supported window")
	} else {
		res.Outcome = domain.OutcomeStrategySelected

		// Phase 5: Simulate
		if err := o.phase("simulate", func() error { return o.simulate(ctx, rc) }); err != nil {
			return nil, fmt.Errorf("phase 5 (simulate) failed: %w", err)
		}
	}

	// Phase 6: Benchmark
	rc.progress.Report(progressBenchmarkAt, "Computing benchmark")
	if err := o.phase("benchmark", func() error { return o.computeBenchmark(ctx, rc) }); err != nil {
		return nil, fmt.Errorf("phase 6 (benchmark) failed: %w", err)
	}

	res.FinishedAt = o.now().UTC()

	// Phase 7: Persist
	if err := o.phase("persist", func() error { return o.persist(ctx, rc) }); err != nil {
		return nil, fmt.Errorf("phase 7 (persist) failed: %w", err)
	}

	rc.progress.Report(1, "Backtest complete")
	rc.logger.WithFields(log.Fields{
		"outcome":  res.Outcome,
		"series":   res.SeriesLoaded,
		"windows":  len(res.RankedWindows),
		"duration": res.FinishedAt.Sub(res.StartedAt).String(),
	}).Info("run complete")

	return res, nil
}

func (o *Orchestrator) collect(ctx context.Context, rc *runContext, listings []domain.ListingEvent) error {
	ptrs := make([]*domain.ListingEvent, len(listings))
	for i := range listings {
		ptrs[i] = &listings[i]
	}

	collector := ingestion.NewCollector(ingestion.CollectorOptions{
		Source:   o.source,
		Workers:  rc.cfg.Workers,
		Logger:   rc.logger.WithField("component", "ingestion"),
		Observer: o.metrics.RecordSeriesFetch,
	})
	series, stats, err := collector.Collect(ctx, ptrs, rc.progress.Stage(0.02, progressCollectEnd))
	if err != nil {
		return err
	}
	rc.series = series
	rc.result.SeriesLoaded = len(series)

	if stats.Failed > 0 {
		rc.result.Warnings = append(rc.result.Warnings, fmt.Sprintf("%d series fetches failed", stats.Failed))
	}
	rc.logger.WithFields(log.Fields{
		"fetched": stats.Fetched,
		"no_data": stats.NoData,
		"failed":  stats.Failed,
	}).Info("Phase 3: series collected")
	return nil
}

func (o *Orchestrator) rank(ctx context.Context, rc *runContext) error {
	// Only training listings reach the ranker. Series are keyed by listing,
	// so a ticker that also appears in the test subset contributes its
	// training-date series only.
	trainSeries := make([]*domain.IntradaySeries, 0, len(rc.train))
	for _, l := range universe.SortByDate(rc.train) {
		if s, ok := rc.series[l.Key()]; ok {
			trainSeries = append(trainSeries, s)
		}
	}

	windows := window.Enumerate(rc.cfg.Grid)
	ranker := metrics.NewRanker(metrics.RankerOptions{
		MinSamples: rc.cfg.MinSamples,
		Workers:    rc.cfg.Workers,
		Location:   rc.cfg.Location,
		Logger:     rc.logger.WithField("component", "ranker"),
	})
	ranked, err := ranker.Rank(ctx, trainSeries, windows, rc.progress.Stage(progressCollectEnd, progressRankEnd))
	if err != nil {
		return err
	}

	rc.result.RankedWindows = ranked
	rc.result.Selected = metrics.Best(ranked)

	var selectedMean *float64
	if rc.result.Selected != nil {
		m := rc.result.Selected.MeanReturn
		selectedMean = &m
		rc.logger.WithFields(log.Fields{
			"window":  rc.result.Selected.Window.Label(),
			"mean":    rc.result.Selected.MeanReturn,
			"samples": rc.result.Selected.SampleCount,
		}).Info("Phase 4: window selected")
	}
	o.metrics.RecordWindowSearch(len(windows), len(ranked), selectedMean)
	return nil
}

func (o *Orchestrator) simulate(ctx context.Context, rc *runContext) error {
	sim, err := simulation.NewSimulator(simulation.SimulatorOptions{
		InitialCapital:      rc.cfg.InitialCapital,
		PositionFraction:    rc.cfg.PositionFraction,
		MaxPositionFraction: rc.cfg.MaxPositionFraction,
		Location:            rc.cfg.Location,
		RunID:               rc.id,
		Logger:              rc.logger.WithField("component", "simulator"),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	w := rc.result.Selected.Window
	rc.result.Train, err = sim.Simulate(ctx, domain.SubsetTrain, rc.train, rc.series, w,
		rc.progress.Stage(progressRankEnd, progressTrainEnd))
	if err != nil {
		return err
	}
	rc.result.Test, err = sim.Simulate(ctx, domain.SubsetTest, rc.test, rc.series, w,
		rc.progress.Stage(progressTrainEnd, progressTestEnd))
	if err != nil {
		return err
	}

	for _, p := range []*domain.PortfolioResult{rc.result.Train, rc.result.Test} {
		o.metrics.RecordSimulation(p.Subset, p.TradeCount, p.FinalEquity)
		if !p.HasTrades() {
			rc.result.Warnings = append(rc.result.Warnings, fmt.Sprintf("no %s trades executed", p.Subset))
		}
	}
	rc.logger.WithFields(log.Fields{
		"train_trades": rc.result.Train.TradeCount,
		"train_final":  rc.result.Train.FinalEquity,
		"test_trades":  rc.result.Test.TradeCount,
		"test_final":   rc.result.Test.FinalEquity,
	}).Info("Phase 5: portfolios simulated")
	return nil
}

func (o *Orchestrator) computeBenchmark(ctx context.Context, rc *runContext) error {
	start, end := rc.cfg.BenchmarkStart, rc.cfg.BenchmarkEnd
	if start.IsZero() || end.IsZero() {
		spanStart, spanEnd := listingSpan(rc.train, rc.test)
		if start.IsZero() {
			start = spanStart
		}
		if end.IsZero() {
			end = spanEnd
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rc.result.Benchmark = o.benchmark.Compute(ctx, start, end, rc.cfg.InitialCapital)
	if rc.result.Benchmark.Fallback {
		o.metrics.RecordBenchmarkFallback()
		rc.result.Warnings = append(rc.result.Warnings, "benchmark uses assumed annual return")
	}
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, rc *runContext) error {
	res := rc.result

	if o.runStore != nil {
		if err := o.runStore.Insert(ctx, Summarize(res, rc.cfg.ConfigLabel)); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
	}
	if o.statStore != nil && len(res.RankedWindows) > 0 {
		if err := o.statStore.InsertRanked(ctx, res.RunID, res.RankedWindows); err != nil {
			return fmt.Errorf("insert window statistics: %w", err)
		}
	}
	if o.tradeStore != nil {
		for _, p := range []*domain.PortfolioResult{res.Train, res.Test} {
			if p == nil || len(p.Trades) == 0 {
				continue
			}
			if err := o.tradeStore.InsertBulk(ctx, res.RunID, p.Subset, p.Trades); err != nil {
				return fmt.Errorf("insert %s trades: %w", p.Subset, err)
			}
		}
	}
	return nil
}

// Summarize builds the persisted header of a run.
func Summarize(res *domain.RunResult, configLabel string) *domain.RunSummary {
	s := &domain.RunSummary{
		RunID:      res.RunID,
		Outcome:    res.Outcome,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		TrainCount: res.Split.TrainCount,
		TestCount:  res.Split.TestCount,
		ConfigJSON: configLabel,
	}
	if res.Selected != nil {
		w := res.Selected.Window
		s.SelectedWindow = &w
	}
	if res.Train != nil {
		v := res.Train.FinalEquity
		s.TrainFinal = &v
	}
	if res.Test != nil {
		v := res.Test.FinalEquity
		s.TestFinal = &v
	}
	if res.Benchmark != nil {
		v := res.Benchmark.FinalValue
		s.BenchmarkFinal = &v
	}
	return s
}

func (o *Orchestrator) minSamples(cfg RunConfig) int {
	if cfg.MinSamples > 0 {
		return cfg.MinSamples
	}
	return metrics.DefaultMinSamples
}

// listingSpan returns the earliest and latest listing dates across subsets.
func listingSpan(subsets ...[]domain.ListingEvent) (time.Time, time.Time) {
	var first, last time.Time
	for _, sub := range subsets {
		for _, l := range sub {
			if first.IsZero() || l.ListingDate.Before(first) {
				first = l.ListingDate
			}
			if last.IsZero() || l.ListingDate.After(last) {
				last = l.ListingDate
			}
		}
	}
	return first, last
}

// phase times fn and records its duration.
func (o *Orchestrator) phase(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics.RecordPhase(name, time.Since(start))
	return err
}
