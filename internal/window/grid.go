// Package window enumerates candidate intraday trading windows.
package window

import (
	"errors"
	"fmt"

	"ipo-window-lab/internal/domain"
)

// ErrInvalidGrid is returned when a grid cannot produce any marks.
var ErrInvalidGrid = errors.New("invalid session grid")

// Grid describes the half-hour marks of a trading session.
// Marks are Open + k*Step for every mark strictly before Close.
type Grid struct {
	Open        domain.TimeOfDay
	Close       domain.TimeOfDay
	StepMinutes int
}

// DefaultGrid is the US equity session 09:30-16:00 in 30 minute steps.
// It yields 13 marks (09:30 .. 15:30) and 78 windows.
func DefaultGrid() Grid {
	return Grid{
		Open:        domain.NewTimeOfDay(9, 30),
		Close:       domain.NewTimeOfDay(16, 0),
		StepMinutes: 30,
	}
}

// Validate checks the grid bounds.
func (g Grid) Validate() error {
	if g.StepMinutes <= 0 {
		return fmt.Errorf("%w: step must be positive, got %d", ErrInvalidGrid, g.StepMinutes)
	}
	if g.Close <= g.Open {
		return fmt.Errorf("%w: close %s not after open %s", ErrInvalidGrid, g.Close, g.Open)
	}
	return nil
}

// Marks returns the grid marks in ascending order.
func (g Grid) Marks() []domain.TimeOfDay {
	if g.Validate() != nil {
		return nil
	}
	var marks []domain.TimeOfDay
	for t := g.Open; t < g.Close; t += domain.TimeOfDay(g.StepMinutes) {
		marks = append(marks, t)
	}
	return marks
}
