// Package universe loads the IPO listing universe and partitions it
// chronologically into train and test subsets.
package universe

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"ipo-window-lab/internal/domain"
)

// ErrInvalidRatio is returned for a train ratio outside (0,1).
var ErrInvalidRatio = errors.New("train ratio must be in (0,1)")

// Split partitions listings by listing date. The earliest floor(ratio*N)
// listings form the train subset, the rest the test subset. Ties on date
// keep input order. The input slice is not modified.
func Split(listings []domain.ListingEvent, ratio float64) (train, test []domain.ListingEvent, err error) {
	if !(ratio > 0 && ratio < 1) {
		return nil, nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, ratio)
	}

	sorted := SortByDate(listings)
	cut := int(math.Floor(ratio * float64(len(sorted))))

	train = append([]domain.ListingEvent{}, sorted[:cut]...)
	test = append([]domain.ListingEvent{}, sorted[cut:]...)
	return train, test, nil
}

// SortByDate returns a copy of listings stably sorted by listing date.
func SortByDate(listings []domain.ListingEvent) []domain.ListingEvent {
	sorted := make([]domain.ListingEvent, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ListingDate.Before(sorted[j].ListingDate)
	})
	return sorted
}

// Describe builds SplitInfo for a partition.
func Describe(train, test []domain.ListingEvent) domain.SplitInfo {
	info := domain.SplitInfo{TrainCount: len(train), TestCount: len(test)}
	info.TrainStart, info.TrainEnd = dateSpan(train)
	info.TestStart, info.TestEnd = dateSpan(test)
	return info
}

func dateSpan(listings []domain.ListingEvent) (*time.Time, *time.Time) {
	if len(listings) == 0 {
		return nil, nil
	}
	first, last := listings[0].ListingDate, listings[0].ListingDate
	for _, l := range listings[1:] {
		if l.ListingDate.Before(first) {
			first = l.ListingDate
		}
		if l.ListingDate.After(last) {
			last = l.ListingDate
		}
	}
	return &first, &last
}

// Tickers returns the set of tickers in listings.
func Tickers(listings []domain.ListingEvent) map[string]bool {
	set := make(map[string]bool, len(listings))
	for _, l := range listings {
		set[l.Ticker] = true
	}
	return set
}
