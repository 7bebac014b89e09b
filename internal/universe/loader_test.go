package universe

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

const sampleCSV = `Ticker,Company,IPO_Date,IPO_Price
 abnb ,Airbnb,2020-12-10,68
DASH,,2020-12-09,102
,Nameless,2020-12-11,10
BAD,Broken,not-a-date,10
SNOW,Snowflake,2020-09-16,
abnb,Airbnb dup,2020-12-10,70
OLD,Old Co,2019-05-01,20
`

func TestLoad_NormalizesAndFilters(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	listings, err := Load(strings.NewReader(sampleCSV), LoadOptions{Start: &start})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d: %+v", len(listings), listings)
	}

	// Sorted by date: SNOW, DASH, ABNB
	if listings[0].Ticker != "SNOW" || listings[1].Ticker != "DASH" || listings[2].Ticker != "ABNB" {
		t.Errorf("unexpected order: %s %s %s", listings[0].Ticker, listings[1].Ticker, listings[2].Ticker)
	}
	if listings[1].Company != "DASH" {
		t.Errorf("expected company fallback to ticker, got %q", listings[1].Company)
	}
	if listings[2].OfferPrice != 68 {
		t.Errorf("expected first duplicate kept with price 68, got %v", listings[2].OfferPrice)
	}
	if p := listings[0].OfferPrice; p < 5 || p > 500 {
		t.Errorf("expected synthetic price in [5,500], got %v", p)
	}
}

func TestLoad_MaxTickers(t *testing.T) {
	listings, err := Load(strings.NewReader(sampleCSV), LoadOptions{MaxTickers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[0].Ticker != "OLD" {
		t.Errorf("expected earliest listing OLD, got %s", listings[0].Ticker)
	}
}

func TestSyntheticOfferPrice_Deterministic(t *testing.T) {
	d := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	a := SyntheticOfferPrice("XYZ", d)
	b := SyntheticOfferPrice("XYZ", d)
	if a != b {
		t.Errorf("expected deterministic price, got %v and %v", a, b)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	listings, err := Load(strings.NewReader(sampleCSV), LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, listings); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	again, err := Load(&buf, LoadOptions{})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(again) != len(listings) {
		t.Fatalf("expected %d listings after reload, got %d", len(listings), len(again))
	}
	for i := range listings {
		if again[i].Ticker != listings[i].Ticker || !again[i].ListingDate.Equal(listings[i].ListingDate) {
			t.Errorf("row %d differs after reload", i)
		}
	}
}
