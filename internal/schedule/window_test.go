package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewDayWindow_SameDay(t *testing.T) {
	// GIVEN: a normal daytime demand on 2026-03-10
	// WHEN: building the window
	// THEN: both ends land on the block date

	w, err := NewDayWindow(day(2026, time.March, 10), "10:00", "11:30")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2026, time.March, 10, 11, 30, 0, 0, time.UTC), w.To)
	assert.Equal(t, 90*time.Minute, w.Duration())
}

func TestNewDayWindow_WrapsPastMidnight(t *testing.T) {
	// GIVEN: a night block demanded 23:00 to 01:00
	// WHEN: building the window
	// THEN: the end rolls into the next calendar day instead of failing

	w, err := NewDayWindow(day(2026, time.March, 10), "23:00", "01:00")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, time.March, 10, 23, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2026, time.March, 11, 1, 0, 0, 0, time.UTC), w.To)
	assert.Equal(t, 2*time.Hour, w.Duration())
}

func TestNewDayWindow_ZeroDurationRejected(t *testing.T) {
	// GIVEN: from == to
	// THEN: construction fails rather than producing an ambiguous window

	_, err := NewDayWindow(day(2026, time.March, 10), "10:00", "10:00")
	require.Error(t, err)
}

func TestNewDayWindow_BadTimeOfDay(t *testing.T) {
	_, err := NewDayWindow(day(2026, time.March, 10), "25:00", "26:00")
	require.Error(t, err)

	_, err = NewDayWindow(day(2026, time.March, 10), "oops", "11:00")
	require.Error(t, err)
}

func TestWindow_OverlapsHalfOpen(t *testing.T) {
	d := day(2026, time.March, 10)

	a, err := NewDayWindow(d, "10:00", "11:00")
	require.NoError(t, err)
	b, err := NewDayWindow(d, "11:00", "12:00")
	require.NoError(t, err)
	c, err := NewDayWindow(d, "10:30", "11:30")
	require.NoError(t, err)

	// Touching endpoints do not overlap.
	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))

	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))
	assert.True(t, a.Overlaps(a))
}

func TestWindow_ShiftToKeepsDuration(t *testing.T) {
	d := day(2026, time.March, 10)

	w, err := NewDayWindow(d, "10:00", "11:30")
	require.NoError(t, err)

	shifted := w.ShiftTo(time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC))
	assert.Equal(t, w.Duration(), shifted.Duration())
	assert.Equal(t, time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC), shifted.To)
}

func TestWindow_Contains(t *testing.T) {
	d := day(2026, time.March, 10)

	w, err := NewDayWindow(d, "10:00", "11:00")
	require.NoError(t, err)

	assert.True(t, w.Contains(w.From))
	assert.True(t, w.Contains(w.From.Add(30*time.Minute)))
	assert.False(t, w.Contains(w.To))
	assert.False(t, w.Contains(w.From.Add(-time.Minute)))
}
