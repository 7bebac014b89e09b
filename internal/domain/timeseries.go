package domain

import (
	"fmt"
	"time"
)

// Bar is one intraday OHLCV bar.
// Corresponds to intraday_bars table in ClickHouse / SQLite.
type Bar struct {
	Timestamp time.Time // bar open time, exchange-local location
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// IntradaySeries is the listing-day bar sequence of one ticker.
// Bars are expected in ascending timestamp order.
type IntradaySeries struct {
	Ticker string
	Date   time.Time // listing date, midnight UTC
	Source string    // provider that produced the bars
	Bars   []Bar
}

// Key returns the ListingKey of the listing the series belongs to.
func (s *IntradaySeries) Key() string {
	return ListingKey(s.Ticker, s.Date)
}

// Len returns number of bars.
func (s *IntradaySeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// TimeOfDayOf returns the wall-clock time of t in loc.
func TimeOfDayOf(t time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String formats as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On returns the instant of t on the calendar day of date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}
