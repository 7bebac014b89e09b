package window

import "ipo-window-lab/internal/domain"

// Enumerate returns every (buy, sell) pair of grid marks with buy < sell.
// Order is lexicographic by (buy, sell); callers rely on it for tie-breaking.
func Enumerate(g Grid) []domain.TradingWindow {
	marks := g.Marks()
	if len(marks) < 2 {
		return nil
	}

	windows := make([]domain.TradingWindow, 0, len(marks)*(len(marks)-1)/2)
	for i := 0; i < len(marks); i++ {
		for j := i + 1; j < len(marks); j++ {
			windows = append(windows, domain.TradingWindow{Buy: marks[i], Sell: marks[j]})
		}
	}
	return windows
}

// Count returns the number of windows Enumerate produces for g.
func Count(g Grid) int {
	k := len(g.Marks())
	return k * (k - 1) / 2
}
