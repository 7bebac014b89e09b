package metrics

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// zeroStddev is the dispersion below which returns are treated as identical.
const zeroStddev = 1e-9

// computeMean calculates arithmetic mean of returns.
func computeMean(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	return mean
}

// computeStddev calculates population standard deviation (n denominator).
// Values below zeroStddev collapse to 0 so identical returns yield exactly 0.
func computeStddev(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationPopulation(returns)
	if err != nil || math.IsNaN(sd) || sd < zeroStddev {
		return 0
	}
	return sd
}

// computeWinRate returns the percentage of strictly positive returns.
func computeWinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns)) * 100
}

// computeSharpe is mean / stddev, 0 when stddev is 0.
// Not annualised and no risk-free rate.
func computeSharpe(mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.50 = median).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
