package metrics

import (
	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/lookup"
)

// CollectReturns computes the per-ticker percentage return of w.
// Tickers missing either bar are skipped. Order follows indexes.
func CollectReturns(w domain.TradingWindow, indexes []*lookup.Index) []float64 {
	returns := make([]float64, 0, len(indexes))
	for _, idx := range indexes {
		if r, ok := idx.WindowReturn(w); ok {
			returns = append(returns, r)
		}
	}
	return returns
}

// Summarize reduces per-ticker returns of w to a WindowStatistic.
// Returns false when there are no samples.
func Summarize(w domain.TradingWindow, returns []float64) (domain.WindowStatistic, bool) {
	n := len(returns)
	if n == 0 {
		return domain.WindowStatistic{Window: w}, false
	}

	sorted := sortedCopy(returns)
	mean := computeMean(returns)
	stddev := computeStddev(returns)

	return domain.WindowStatistic{
		Window:       w,
		MeanReturn:   mean,
		StdReturn:    stddev,
		WinRate:      computeWinRate(returns),
		Sharpe:       computeSharpe(mean, stddev),
		SampleCount:  n,
		MedianReturn: computePercentile(sorted, 0.50),
		MinReturn:    sorted[0],
		MaxReturn:    sorted[n-1],
	}, true
}
