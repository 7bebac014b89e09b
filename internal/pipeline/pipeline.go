// Package pipeline assembles a configured backtest: series sources, stores,
// the orchestrator and the run artefacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/benchmark"
	"ipo-window-lab/internal/config"
	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/ingestion"
	"ipo-window-lab/internal/ingestion/synthetic"
	"ipo-window-lab/internal/marketdata"
	"ipo-window-lab/internal/observability"
	"ipo-window-lab/internal/orchestrator"
	"ipo-window-lab/internal/reporting"
	"ipo-window-lab/internal/universe"
)

// Output is the result of a pipeline run.
type Output struct {
	Result *domain.RunResult
	Report *reporting.Report
	Dir    string // artefact directory, empty when artefacts are disabled
}

// Pipeline runs one configured backtest end to end.
type Pipeline struct {
	cfg         *config.Config
	stack       *Stack
	source      ingestion.SeriesSource // overrides the configured source
	priceSource benchmark.PriceSource
	metrics     *observability.Metrics
	logger      *log.Entry
	clock       func() time.Time
	fromStore   bool // read the universe from the ListingStore instead of CSV
	artefacts   bool
}

// New creates a pipeline. cfg must already be validated.
func New(cfg *config.Config, stack *Stack) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		stack:     stack,
		logger:    log.WithField("component", "pipeline"),
		clock:     func() time.Time { return time.Now().UTC() },
		artefacts: true,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// WithLogger sets the parent logger entry.
func (p *Pipeline) WithLogger(logger *log.Entry) *Pipeline {
	p.logger = logger.WithField("component", "pipeline")
	return p
}

// WithMetrics records run metrics.
func (p *Pipeline) WithMetrics(m *observability.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithSource replaces the configured series source. The bar cache still wraps it.
func (p *Pipeline) WithSource(src ingestion.SeriesSource) *Pipeline {
	p.source = src
	return p
}

// WithPriceSource replaces the benchmark price source.
func (p *Pipeline) WithPriceSource(src benchmark.PriceSource) *Pipeline {
	p.priceSource = src
	return p
}

// WithListingStore reads the universe from the stack's ListingStore.
func (p *Pipeline) WithListingStore() *Pipeline {
	p.fromStore = true
	return p
}

// WithoutArtefacts skips writing the output directory.
func (p *Pipeline) WithoutArtefacts() *Pipeline {
	p.artefacts = false
	return p
}

// Run loads the universe, runs the orchestrator and writes the artefacts.
func (p *Pipeline) Run(ctx context.Context, progress domain.ProgressFunc) (*Output, error) {
	listings, err := p.LoadUniverse(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.WithField("listings", len(listings)).Info("Universe loaded")

	rc, err := p.RunConfig()
	if err != nil {
		return nil, err
	}
	source, prices, err := p.Sources()
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(orchestrator.Options{
		Source: source,
		Benchmark: benchmark.NewCalculator(benchmark.CalculatorOptions{
			Source:               prices,
			Symbol:               p.cfg.Benchmark.Symbol,
			FallbackAnnualReturn: &p.cfg.Benchmark.FallbackAnnualReturn,
			Logger:               p.logger.WithField("component", "benchmark"),
		}),
		RunStore:        p.stack.Runs,
		WindowStatStore: p.stack.Stats,
		TradeStore:      p.stack.Trades,
		Metrics:         p.metrics,
		Logger:          p.logger,
		Now:             p.clock,
	})

	res, err := orch.Run(ctx, rc, listings, progress)
	if err != nil {
		return nil, err
	}

	report := reporting.NewGenerator().WithClock(p.clock).Generate(res, reporting.Parameters{
		SplitRatio:       rc.SplitRatio,
		InitialCapital:   rc.InitialCapital,
		PositionFraction: rc.PositionFraction,
		MinSamples:       rc.MinSamples,
		DataMode:         source.Name(),
	})
	out := &Output{Result: res, Report: report}

	if !p.artefacts {
		return out, nil
	}

	// Split is deterministic, so the subsets match the ones the run used.
	train, test, err := universe.Split(listings, rc.SplitRatio)
	if err != nil {
		return nil, err
	}
	dir, err := reporting.CreateRunDir(p.cfg.Output.Dir,
		reporting.RunDirName(res.StartedAt, rc.SplitRatio, p.cfg.Backtest.MaxTickers))
	if err != nil {
		return nil, err
	}
	cfgYAML, err := p.cfg.YAML()
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	if err := dir.WriteAll(reporting.Artefacts{
		ConfigYAML: cfgYAML,
		Train:      train,
		Test:       test,
		Result:     res,
		Report:     report,
	}); err != nil {
		return nil, fmt.Errorf("write artefacts: %w", err)
	}
	out.Dir = dir.Path
	p.logger.WithField("dir", dir.Path).Info("Artefacts written")

	return out, nil
}

// LoadUniverse reads listings within the configured date range.
func (p *Pipeline) LoadUniverse(ctx context.Context) ([]domain.ListingEvent, error) {
	start, end, err := p.cfg.DateRange()
	if err != nil {
		return nil, err
	}

	if !p.fromStore {
		return universe.LoadFile(p.cfg.Data.UniverseCSV, universe.LoadOptions{
			Start:      &start,
			End:        &end,
			MaxTickers: p.cfg.Backtest.MaxTickers,
		})
	}

	stored, err := p.stack.Listings.GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	listings := make([]domain.ListingEvent, len(stored))
	for i, l := range stored {
		listings[i] = *l
	}
	listings = universe.SortByDate(listings)
	if n := p.cfg.Backtest.MaxTickers; n > 0 && len(listings) > n {
		listings = listings[:n]
	}
	return listings, nil
}

// RunConfig translates the configuration into orchestrator parameters.
func (p *Pipeline) RunConfig() (orchestrator.RunConfig, error) {
	b := p.cfg.Backtest
	start, end, err := p.cfg.DateRange()
	if err != nil {
		return orchestrator.RunConfig{}, err
	}
	loc, err := p.cfg.Location()
	if err != nil {
		return orchestrator.RunConfig{}, err
	}
	grid, err := p.cfg.Grid()
	if err != nil {
		return orchestrator.RunConfig{}, err
	}

	label := ""
	if body, err := p.cfg.YAML(); err == nil {
		label = string(body)
	}

	return orchestrator.RunConfig{
		SplitRatio:          b.TrainTestSplit,
		InitialCapital:      b.InitialCapital,
		PositionFraction:    b.PositionSize,
		MaxPositionFraction: b.MaxPositionFraction,
		MinSamples:          b.MinSamples,
		Workers:             b.Workers,
		Grid:                grid,
		Location:            loc,
		BenchmarkStart:      start,
		BenchmarkEnd:        end,
		ConfigLabel:         label,
	}, nil
}

// Sources builds the series source and the benchmark price source.
//
// SIMULATION mode uses the synthetic generator. POLYGON mode fetches minute
// bars and falls back to the generator per listing. With an API key the
// benchmark uses Polygon daily closes in either mode. Series are cached in
// the stack's BarStore when one is configured.
func (p *Pipeline) Sources() (ingestion.SeriesSource, benchmark.PriceSource, error) {
	loc, err := p.cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	grid, err := p.cfg.Grid()
	if err != nil {
		return nil, nil, err
	}

	var client *marketdata.Client
	if p.cfg.Data.PolygonAPIKey != "" {
		client, err = marketdata.NewClient(marketdata.ClientOptions{
			APIKey:            p.cfg.Data.PolygonAPIKey,
			RequestsPerSecond: p.cfg.Data.RequestsPerSecond,
			Location:          loc,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	source := p.source
	if source == nil {
		generator := synthetic.NewGenerator(synthetic.GeneratorOptions{
			Location: loc,
			Open:     grid.Open,
			Close:    grid.Close,
		})
		switch p.cfg.Data.Mode {
		case config.ModePolygon:
			if client == nil {
				return nil, nil, fmt.Errorf("%w: %s mode: %v", config.ErrInvalidConfig, config.ModePolygon, marketdata.ErrMissingAPIKey)
			}
			source = ingestion.NewFallbackSource(
				ingestion.NewPolygonSource(client, loc),
				generator,
				p.logger.WithField("component", "ingestion"),
			)
		default:
			source = generator
		}
	}

	if p.stack != nil && p.stack.Bars != nil {
		source = ingestion.NewCachedSource(source, p.stack.Bars, p.logger.WithField("component", "cache"))
	}

	prices := p.priceSource
	if prices == nil && client != nil {
		prices = benchmark.NewPolygonSource(client)
	}
	return source, prices, nil
}

// IsInputError reports whether err stems from configuration or an empty universe.
func IsInputError(err error) bool {
	return errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, orchestrator.ErrInvalidConfig) ||
		errors.Is(err, orchestrator.ErrEmptyUniverse)
}
