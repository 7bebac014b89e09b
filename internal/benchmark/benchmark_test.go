package benchmark

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/marketdata"
)

type stubFetcher struct {
	bars []domain.Bar
	err  error
	last marketdata.AggsQuery
}

func (f *stubFetcher) FetchAggs(_ context.Context, q marketdata.AggsQuery) ([]domain.Bar, error) {
	f.last = q
	return f.bars, f.err
}

var (
	start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end   = start.AddDate(2, 0, 0)
)

func TestCompute_FromPrices(t *testing.T) {
	fetcher := &stubFetcher{bars: []domain.Bar{{Close: 300}, {Close: 320}, {Close: 360}}}
	calc := NewCalculator(CalculatorOptions{Source: NewPolygonSource(fetcher)})

	res := calc.Compute(context.Background(), start, end, 100000)

	if res.Fallback {
		t.Fatal("expected price-based result")
	}
	if fetcher.last.Symbol != "SPY" || fetcher.last.Timespan != marketdata.Day {
		t.Errorf("unexpected query %+v", fetcher.last)
	}
	if math.Abs(res.FinalValue-120000) > 1e-6 {
		t.Errorf("expected final value 120000, got %v", res.FinalValue)
	}
	if math.Abs(res.TotalReturnPct-20) > 1e-9 {
		t.Errorf("expected 20%% return, got %v", res.TotalReturnPct)
	}

	years := end.Sub(start).Hours() / 24 / daysPerYear
	want := (math.Pow(1.2, 1/years) - 1) * 100
	if math.Abs(res.CAGR-want) > 1e-9 {
		t.Errorf("expected CAGR %v, got %v", want, res.CAGR)
	}
}

func TestCompute_FallbackOnError(t *testing.T) {
	calc := NewCalculator(CalculatorOptions{Source: NewPolygonSource(&stubFetcher{err: errors.New("boom")})})

	res := calc.Compute(context.Background(), start, end, 100000)

	if !res.Fallback {
		t.Fatal("expected fallback result")
	}
	years := end.Sub(start).Hours() / 24 / daysPerYear
	wantTotal := (math.Pow(1.10, years) - 1) * 100
	if math.Abs(res.TotalReturnPct-wantTotal) > 1e-9 {
		t.Errorf("expected total %v, got %v", wantTotal, res.TotalReturnPct)
	}
	if math.Abs(res.CAGR-10) > 1e-9 {
		t.Errorf("expected CAGR 10, got %v", res.CAGR)
	}
	if math.Abs(res.FinalValue-100000*(1+wantTotal/100)) > 1e-6 {
		t.Errorf("unexpected final value %v", res.FinalValue)
	}
}

func TestCompute_FallbackOnEmptyAndNilSource(t *testing.T) {
	empty := NewCalculator(CalculatorOptions{Source: NewPolygonSource(&stubFetcher{})})
	if res := empty.Compute(context.Background(), start, end, 1000); !res.Fallback {
		t.Error("expected fallback for empty prices")
	}

	annual := 0.05
	none := NewCalculator(CalculatorOptions{FallbackAnnualReturn: &annual})
	res := none.Compute(context.Background(), start, end, 1000)
	if !res.Fallback || math.Abs(res.CAGR-5) > 1e-9 {
		t.Errorf("expected 5%% fallback, got %+v", res)
	}
}

func TestCompute_ZeroSpan(t *testing.T) {
	calc := NewCalculator(CalculatorOptions{})
	res := calc.Compute(context.Background(), start, start, 1000)
	if res.TotalReturnPct != 0 || res.FinalValue != 1000 {
		t.Errorf("expected flat result for zero span, got %+v", res)
	}

	priced := NewCalculator(CalculatorOptions{Source: NewPolygonSource(&stubFetcher{bars: []domain.Bar{{Close: 10}, {Close: 11}}})})
	if res := priced.Compute(context.Background(), start, start, 1000); res.CAGR != 0 {
		t.Errorf("expected CAGR 0 for zero span, got %v", res.CAGR)
	}
}

func TestCompute_ExplicitZeroFallback(t *testing.T) {
	zero := 0.0
	calc := NewCalculator(CalculatorOptions{FallbackAnnualReturn: &zero})
	res := calc.Compute(context.Background(), start, end, 1000)
	if !res.Fallback {
		t.Fatal("expected fallback without a price source")
	}
	if res.CAGR != 0 || res.TotalReturnPct != 0 || res.FinalValue != 1000 {
		t.Errorf("expected flat benchmark for 0%% annual return, got %+v", res)
	}
}
