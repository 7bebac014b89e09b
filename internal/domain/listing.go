package domain

import "time"

// ListingEvent is a single IPO: the first trading day of a ticker.
// Corresponds to listings table in Postgres.
type ListingEvent struct {
	Ticker      string    // upper-case symbol
	Company     string    // display name, defaults to Ticker
	ListingDate time.Time // first trading day, midnight UTC
	OfferPrice  float64   // IPO offer price (informational)
}

// DateKey returns the listing date as YYYY-MM-DD.
func (l ListingEvent) DateKey() string {
	return l.ListingDate.Format(DateLayout)
}

// Key identifies the listing as TICKER|YYYY-MM-DD. Series are keyed by it,
// so a ticker listed on two dates keeps one series per date.
func (l ListingEvent) Key() string {
	return ListingKey(l.Ticker, l.ListingDate)
}

// ListingKey builds the key of ticker's listing on date.
func ListingKey(ticker string, date time.Time) string {
	return ticker + "|" + date.Format(DateLayout)
}

// DateLayout is the calendar date format used across inputs and artefacts.
const DateLayout = "2006-01-02"

// SplitInfo describes a chronological train/test partition.
type SplitInfo struct {
	TrainCount int
	TestCount  int
	TrainStart *time.Time // nil when the subset is empty
	TrainEnd   *time.Time
	TestStart  *time.Time
	TestEnd    *time.Time
}
