package ingestion

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/domain"
)

// FetchObserver is notified of every fetch outcome.
// status is "ok", "no_data" or "error".
type FetchObserver func(source, status string)

// Collector fetches listing-day series for a universe concurrently.
type Collector struct {
	source   SeriesSource
	workers  int
	logger   *log.Entry
	observer FetchObserver
}

// CollectorOptions contains configuration for creating a Collector.
type CollectorOptions struct {
	Source   SeriesSource
	Workers  int // default runtime.NumCPU()
	Logger   *log.Entry
	Observer FetchObserver
}

// CollectStats summarizes a collection pass.
type CollectStats struct {
	Requested int
	Fetched   int
	NoData    int
	Failed    int
}

// NewCollector creates a collector.
func NewCollector(opts CollectorOptions) *Collector {
	c := &Collector{
		source:   opts.Source,
		workers:  opts.Workers,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
	if c.workers <= 0 {
		c.workers = runtime.NumCPU()
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "ingestion")
	}
	return c
}

type fetchResult struct {
	key    string
	ticker string
	series *domain.IntradaySeries
	err    error
}

// Collect fetches every listing and returns series keyed by
// ListingEvent.Key. Listings whose fetch fails or returns no bars are absent
// from the map. A ticker listed on several dates gets one series per date;
// repeated (ticker, date) pairs are fetched once.
// Only context cancellation is returned as an error.
func (c *Collector) Collect(ctx context.Context, listings []*domain.ListingEvent, progress domain.ProgressFunc) (map[string]*domain.IntradaySeries, CollectStats, error) {
	unique := make([]*domain.ListingEvent, 0, len(listings))
	seen := make(map[string]bool, len(listings))
	for _, l := range listings {
		k := l.Key()
		if seen[k] {
			c.logger.WithField("listing", k).Warn("duplicate listing in universe, fetching once")
			continue
		}
		seen[k] = true
		unique = append(unique, l)
	}

	stats := CollectStats{Requested: len(unique)}
	out := make(map[string]*domain.IntradaySeries, len(unique))
	if len(unique) == 0 {
		return out, stats, nil
	}

	workCh := make(chan *domain.ListingEvent, len(unique))
	resultCh := make(chan fetchResult, len(unique))

	workers := c.workers
	if workers > len(unique) {
		workers = len(unique)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range workCh {
				if ctx.Err() != nil {
					continue
				}
				series, err := c.source.Fetch(ctx, l)
				resultCh <- fetchResult{key: l.Key(), ticker: l.Ticker, series: series, err: err}
			}
		}()
	}

	for _, l := range unique {
		workCh <- l
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	done := 0
	for res := range resultCh {
		done++
		switch {
		case res.err == nil && res.series.Len() > 0:
			out[res.key] = res.series
			stats.Fetched++
			c.observe("ok")
		case res.err == nil || errors.Is(res.err, ErrNoData):
			stats.NoData++
			c.observe("no_data")
			c.logger.WithField("ticker", res.ticker).Debug("no intraday data")
		default:
			stats.Failed++
			c.observe("error")
			c.logger.WithField("ticker", res.ticker).WithError(res.err).Warn("series fetch failed")
		}
		progress.Report(float64(done)/float64(len(unique)),
			fmt.Sprintf("Collected %d/%d listings", done, len(unique)))
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("collect series: %w", err)
	}

	c.logger.WithFields(log.Fields{
		"source":    c.source.Name(),
		"requested": stats.Requested,
		"fetched":   stats.Fetched,
		"no_data":   stats.NoData,
		"failed":    stats.Failed,
	}).Info("series collection complete")

	return out, stats, nil
}

func (c *Collector) observe(status string) {
	if c.observer != nil {
		c.observer(c.source.Name(), status)
	}
}
