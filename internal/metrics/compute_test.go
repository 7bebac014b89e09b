package metrics

import (
	"math"
	"testing"

	"ipo-window-lab/internal/domain"
)

const eps = 1e-9

func TestComputeStddev_Population(t *testing.T) {
	// Population std-dev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	got := computeStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2) > eps {
		t.Errorf("expected 2, got %v", got)
	}
}

func TestComputeStddev_IdenticalReturnsAreZero(t *testing.T) {
	returns := make([]float64, 10)
	for i := range returns {
		returns[i] = (102.0/100.0 - 1) * 100
	}
	if got := computeStddev(returns); got != 0 {
		t.Errorf("expected exactly 0 for identical returns, got %v", got)
	}
	if got := computeStddev([]float64{3}); got != 0 {
		t.Errorf("expected 0 for single sample, got %v", got)
	}
}

func TestComputeWinRate(t *testing.T) {
	got := computeWinRate([]float64{1, -1, 0, 2})
	if math.Abs(got-50) > eps {
		t.Errorf("expected 50%%, got %v", got)
	}
	if computeWinRate(nil) != 0 {
		t.Error("expected 0 for no returns")
	}
}

func TestComputeSharpe_ZeroStddev(t *testing.T) {
	if got := computeSharpe(2, 0); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := computeSharpe(2, 4); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	if got := computePercentile(sorted, 0.5); math.Abs(got-2.5) > eps {
		t.Errorf("expected median 2.5, got %v", got)
	}
	if got := computePercentile(nil, 0.5); got != 0 {
		t.Errorf("expected 0 for empty, got %v", got)
	}
}

func TestSummarize(t *testing.T) {
	w := domain.TradingWindow{Buy: domain.NewTimeOfDay(10, 0), Sell: domain.NewTimeOfDay(11, 0)}

	stat, ok := Summarize(w, []float64{4, -2, 1})
	if !ok {
		t.Fatal("expected statistic")
	}
	if stat.SampleCount != 3 {
		t.Errorf("expected 3 samples, got %d", stat.SampleCount)
	}
	if math.Abs(stat.MeanReturn-1) > eps {
		t.Errorf("expected mean 1, got %v", stat.MeanReturn)
	}
	wantStd := math.Sqrt((9.0 + 9.0 + 0.0) / 3.0)
	if math.Abs(stat.StdReturn-wantStd) > eps {
		t.Errorf("expected std %v, got %v", wantStd, stat.StdReturn)
	}
	if math.Abs(stat.Sharpe-1/wantStd) > eps {
		t.Errorf("expected sharpe %v, got %v", 1/wantStd, stat.Sharpe)
	}
	if math.Abs(stat.WinRate-200.0/3.0) > eps {
		t.Errorf("expected win rate 66.67, got %v", stat.WinRate)
	}
	if stat.MinReturn != -2 || stat.MaxReturn != 4 || stat.MedianReturn != 1 {
		t.Errorf("unexpected min/max/median: %v/%v/%v", stat.MinReturn, stat.MaxReturn, stat.MedianReturn)
	}

	if _, ok := Summarize(w, nil); ok {
		t.Error("expected no statistic for empty returns")
	}
}
