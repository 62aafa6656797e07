// Package schedule holds the pure scheduling engine: time windows, conflict
// detection, approval-chain resolution and batch slot planning. Nothing in
// this package touches the database, which keeps every rule unit-testable.
package schedule

import (
	"fmt"
	"time"
)

// Window is a half-open time interval [From, To). To is always strictly
// after From: demand windows that wrap past midnight are normalized by
// rolling To into the next day at construction time.
type Window struct {
	From time.Time
	To   time.Time
}

// NewDayWindow builds a window from a calendar date and two "HH:MM"
// times-of-day. A to at or before from is taken to wrap past midnight and is
// rolled into the next day rather than rejected or truncated. A zero-length
// window (from == to after parsing) would be ambiguous and is rejected.
func NewDayWindow(date time.Time, from, to string) (Window, error) {
	f, err := atTimeOfDay(date, from)
	if err != nil {
		return Window{}, fmt.Errorf("invalid from time %q: %w", from, err)
	}
	t, err := atTimeOfDay(date, to)
	if err != nil {
		return Window{}, fmt.Errorf("invalid to time %q: %w", to, err)
	}
	if t.Equal(f) {
		return Window{}, fmt.Errorf("window %s-%s has zero duration", from, to)
	}
	if t.Before(f) {
		t = t.AddDate(0, 0, 1)
	}
	return Window{From: f, To: t}, nil
}

func atTimeOfDay(date time.Time, hhmm string) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location()), nil
}

// Overlaps reports whether two half-open windows intersect. Touching
// endpoints ([10:00,11:00) and [11:00,12:00)) do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.From.Before(other.To) && other.From.Before(w.To)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// ShiftTo returns a window of the same duration starting at start.
func (w Window) ShiftTo(start time.Time) Window {
	return Window{From: start, To: start.Add(w.Duration())}
}

// Contains reports whether t lies inside the half-open interval.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}
