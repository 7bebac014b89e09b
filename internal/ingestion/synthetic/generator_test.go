package synthetic

import (
	"context"
	"testing"
	"time"

	"ipo-window-lab/internal/domain"
)

var day = time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC)

func TestGenerate_Deterministic(t *testing.T) {
	g := NewGenerator(GeneratorOptions{})
	a := g.Generate("RDDT", day, 34)
	b := g.Generate("RDDT", day, 34)

	if a.Len() != b.Len() {
		t.Fatalf("length mismatch: %d vs %d", a.Len(), b.Len())
	}
	for i := range a.Bars {
		if a.Bars[i] != b.Bars[i] {
			t.Fatalf("bar %d differs: %+v vs %+v", i, a.Bars[i], b.Bars[i])
		}
	}

	c := g.Generate("ALAB", day, 34)
	if c.Bars[0].Close == a.Bars[0].Close {
		t.Error("different tickers should produce different paths")
	}
}

func TestGenerate_SessionShape(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewGenerator(GeneratorOptions{Location: ny}).Generate("RDDT", day, 34)

	// 09:30..16:00 inclusive
	if s.Len() != 391 {
		t.Fatalf("expected 391 bars, got %d", s.Len())
	}
	first := s.Bars[0].Timestamp.In(ny)
	last := s.Bars[s.Len()-1].Timestamp.In(ny)
	if first.Hour() != 9 || first.Minute() != 30 {
		t.Errorf("expected first bar at 09:30, got %s", first.Format("15:04"))
	}
	if last.Hour() != 16 || last.Minute() != 0 {
		t.Errorf("expected last bar at 16:00, got %s", last.Format("15:04"))
	}
	if first.Day() != 21 {
		t.Errorf("expected listing day 21, got %d", first.Day())
	}
	if s.Source != SourceName {
		t.Errorf("expected source %s, got %s", SourceName, s.Source)
	}
}

func TestGenerate_PriceBounds(t *testing.T) {
	const offer = 20.0
	s := NewGenerator(GeneratorOptions{}).Generate("BIRK", day, offer)

	open := s.Bars[0].Close
	if open < offer*popMin || open > offer*popMax {
		t.Errorf("opening price %f outside pop range", open)
	}
	for i, b := range s.Bars {
		if b.Close < offer*priceFloor {
			t.Errorf("bar %d close %f below floor", i, b.Close)
		}
		if b.High < b.Close || b.High < b.Open || b.Low > b.Close || b.Low > b.Open {
			t.Errorf("bar %d violates OHLC ordering: %+v", i, b)
		}
		if b.Volume < 0 {
			t.Errorf("bar %d negative volume", i)
		}
		if i > 0 && !b.Timestamp.After(s.Bars[i-1].Timestamp) {
			t.Errorf("bar %d not after previous", i)
		}
	}
}

func TestGenerate_DefaultOfferPrice(t *testing.T) {
	s := NewGenerator(GeneratorOptions{}).Generate("CAVA", day, 0)
	open := s.Bars[0].Close
	if open < defaultOfferMin*popMin || open > defaultOfferMax*popMax {
		t.Errorf("opening price %f outside default range", open)
	}
}

func TestVolatilityMultiplier(t *testing.T) {
	cases := []struct {
		hour, minute int
		want         float64
	}{
		{9, 31, 2.0},
		{9, 50, 1.5},
		{10, 15, 1.2},
		{12, 0, 0.8},
		{14, 0, 1.0},
		{15, 10, 1.0},
		{15, 45, 1.3},
	}
	for _, c := range cases {
		if got := volatilityMultiplier(c.hour, c.minute); got != c.want {
			t.Errorf("%02d:%02d: expected %f, got %f", c.hour, c.minute, c.want, got)
		}
	}
}

func TestFetch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator(GeneratorOptions{}).Fetch(ctx, &domain.ListingEvent{Ticker: "X", ListingDate: day})
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}
