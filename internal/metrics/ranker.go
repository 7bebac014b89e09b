package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/lookup"
)

// DefaultMinSamples is the minimum ticker count for a window to be ranked.
const DefaultMinSamples = 10

// Ranker evaluates candidate windows over a set of series and orders the
// windows with enough support by mean return.
type Ranker struct {
	minSamples int
	workers    int
	location   *time.Location
	logger     *log.Entry
}

// RankerOptions contains configuration for creating a Ranker.
type RankerOptions struct {
	MinSamples int            // default DefaultMinSamples
	Workers    int            // default runtime.NumCPU()
	Location   *time.Location // exchange time zone for bar clocks, default UTC
	Logger     *log.Entry
}

// NewRanker creates a window ranker.
func NewRanker(opts RankerOptions) *Ranker {
	r := &Ranker{
		minSamples: opts.MinSamples,
		workers:    opts.Workers,
		location:   opts.Location,
		logger:     opts.Logger,
	}
	if r.minSamples <= 0 {
		r.minSamples = DefaultMinSamples
	}
	if r.workers <= 0 {
		r.workers = runtime.NumCPU()
	}
	if r.location == nil {
		r.location = time.UTC
	}
	if r.logger == nil {
		r.logger = log.WithField("component", "ranker")
	}
	return r
}

// MinSamples returns the support threshold.
func (r *Ranker) MinSamples() int { return r.minSamples }

type windowResult struct {
	pos  int
	stat domain.WindowStatistic
	ok   bool
}

// Rank evaluates every window against series.
// Steps:
//  1. Index each series by bar clock time (empty series are skipped)
//  2. Fan windows out to workers; each worker owns whole windows
//  3. Join, then drop windows with fewer than MinSamples samples
//  4. Stable sort by mean return descending (enumeration order breaks ties)
//
// An empty result means no window met the support threshold.
func (r *Ranker) Rank(ctx context.Context, series []*domain.IntradaySeries, windows []domain.TradingWindow, progress domain.ProgressFunc) ([]domain.WindowStatistic, error) {
	// 1. Index series
	indexes := make([]*lookup.Index, 0, len(series))
	for _, s := range series {
		idx, err := lookup.NewIndex(s, r.location)
		if err != nil {
			continue
		}
		indexes = append(indexes, idx)
	}

	if len(windows) == 0 {
		return nil, nil
	}

	// 2. Worker pool over windows
	workCh := make(chan int, len(windows))
	resultCh := make(chan windowResult, len(windows))

	workers := r.workers
	if workers > len(windows) {
		workers = len(windows)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range workCh {
				if ctx.Err() != nil {
					continue
				}
				w := windows[pos]
				stat, ok := Summarize(w, CollectReturns(w, indexes))
				resultCh <- windowResult{pos: pos, stat: stat, ok: ok}
			}
		}()
	}

	for pos := range windows {
		workCh <- pos
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// 3. Join: results land at their enumeration position
	results := make([]windowResult, len(windows))
	done := 0
	for res := range resultCh {
		results[res.pos] = res
		done++
		progress.Report(float64(done)/float64(len(windows)),
			fmt.Sprintf("Evaluated %d/%d windows", done, len(windows)))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rank windows: %w", err)
	}

	ranked := make([]domain.WindowStatistic, 0, len(windows))
	for _, res := range results {
		if res.ok && res.stat.SampleCount >= r.minSamples {
			ranked = append(ranked, res.stat)
		}
	}

	// 4. Order by mean return
	SortByMeanReturn(ranked)

	r.logger.WithFields(log.Fields{
		"series":    len(indexes),
		"windows":   len(windows),
		"retained":  len(ranked),
		"min_count": r.minSamples,
	}).Debug("window ranking complete")

	return ranked, nil
}

// SortByMeanReturn orders stats by mean return descending, keeping input
// order among equal means.
func SortByMeanReturn(stats []domain.WindowStatistic) {
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].MeanReturn > stats[j].MeanReturn
	})
}

// Best returns the top-ranked window, or nil when ranked is empty.
func Best(ranked []domain.WindowStatistic) *domain.WindowStatistic {
	if len(ranked) == 0 {
		return nil
	}
	best := ranked[0]
	return &best
}
