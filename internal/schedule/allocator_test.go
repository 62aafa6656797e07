package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(t *testing.T, res ResourceKey, lines []LineRef, from, to string, created time.Time) Candidate {
	t.Helper()
	d, err := time.Parse("2006-01-02", res.Date)
	require.NoError(t, err)
	return Candidate{
		ID:       uuid.New(),
		Resource: res,
		Lines:    lines,
		Demand:   mustWindow(t, d, from, to),
		Created:  created,
	}
}

func assignmentFor(t *testing.T, result PlanResult, id uuid.UUID) Assignment {
	t.Helper()
	for _, a := range result.Assigned {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("no assignment for %s", id)
	return Assignment{}
}

func TestPlan_EarlierDemandKeepsWindowLaterShifts(t *testing.T) {
	// GIVEN: A demands 10:00-11:00, B demands 10:30-11:30 on the same line
	// WHEN: planning the group
	// THEN: A keeps its window, B shifts to start at 11:00

	d := day(2026, time.March, 10)
	res := NewResourceKey("GZB-MUT", d)
	lines := []LineRef{{Name: "UP_MAIN"}}

	a := candidate(t, res, lines, "10:00", "11:00", d.Add(8*time.Hour))
	b := candidate(t, res, lines, "10:30", "11:30", d.Add(9*time.Hour))

	result := Plan([]Candidate{a, b}, nil)
	require.Len(t, result.Assigned, 2)
	require.Empty(t, result.Unallocable)

	gotA := assignmentFor(t, result, a.ID)
	assert.Equal(t, a.Demand, gotA.Window)

	gotB := assignmentFor(t, result, b.ID)
	assert.Equal(t, time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC), gotB.Window.From)
	assert.Equal(t, time.Hour, gotB.Window.Duration())
}

func TestPlan_DisjointLinesShareTheDay(t *testing.T) {
	// Work on different, non-adjacent lines never displaces each other.
	d := day(2026, time.March, 10)
	res := NewResourceKey("GZB-MUT", d)

	a := candidate(t, res, []LineRef{{Name: "UP_MAIN"}}, "10:00", "11:00", d)
	b := candidate(t, res, []LineRef{{Name: "DOWN_MAIN"}}, "10:00", "11:00", d)

	result := Plan([]Candidate{a, b}, nil)
	require.Len(t, result.Assigned, 2)
	assert.Equal(t, a.Demand, assignmentFor(t, result, a.ID).Window)
	assert.Equal(t, b.Demand, assignmentFor(t, result, b.ID).Window)
}

func TestPlan_AvoidsFixedBookings(t *testing.T) {
	// GIVEN: an urgent slot already committed 10:00-12:00
	// WHEN: a routine candidate demands 10:00-11:00 on an interacting line
	// THEN: it is pushed past the fixed slot, never through it

	d := day(2026, time.March, 10)
	res := NewResourceKey("GZB-MUT", d)
	lines := []LineRef{{Name: "UP_MAIN"}}

	fixed := booking(t, res, lines, "10:00", "12:00")
	c := candidate(t, res, lines, "10:00", "11:00", d)

	result := Plan([]Candidate{c}, []Booking{fixed})
	require.Len(t, result.Assigned, 1)
	assert.Equal(t, time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC), result.Assigned[0].Window.From)
}

func TestPlan_UnallocableDoesNotAbortRest(t *testing.T) {
	// GIVEN: a fixed slot occupying the rest of the day and two candidates,
	// one fitting before it and one that cannot start on the block date
	// WHEN: planning
	// THEN: the fitting one is assigned, the other is reported unallocable

	d := day(2026, time.March, 10)
	res := NewResourceKey("GZB-MUT", d)
	lines := []LineRef{{Name: "UP_MAIN"}}

	fixed := booking(t, res, lines, "11:00", "00:30")
	fits := candidate(t, res, lines, "10:00", "11:00", d)
	squeezed := candidate(t, res, lines, "10:30", "11:30", d)

	result := Plan([]Candidate{fits, squeezed}, []Booking{fixed})

	require.Len(t, result.Assigned, 1)
	assert.Equal(t, fits.ID, result.Assigned[0].ID)
	require.Len(t, result.Unallocable, 1)
	assert.Equal(t, squeezed.ID, result.Unallocable[0])
}

func TestPlan_ShiftMayRunPastMidnight(t *testing.T) {
	// A shifted window may cross midnight as long as its start stays on the
	// block date.
	d := day(2026, time.March, 10)
	res := NewResourceKey("GZB-MUT", d)
	lines := []LineRef{{Name: "UP_MAIN"}}

	fixed := booking(t, res, lines, "22:00", "23:30")
	c := candidate(t, res, lines, "22:30", "23:30", d)

	result := Plan([]Candidate{c}, []Booking{fixed})
	require.Len(t, result.Assigned, 1)
	got := result.Assigned[0].Window
	assert.Equal(t, time.Date(2026, time.March, 10, 23, 30, 0, 0, time.UTC), got.From)
	assert.Equal(t, time.Date(2026, time.March, 11, 0, 30, 0, 0, time.UTC), got.To)
}

func TestPlan_TieBreakByCreationTime(t *testing.T) {
	// Equal demand starts fall back to creation order.
	d := day(2026, time.March, 10)
	res := NewResourceKey("GZB-MUT", d)
	lines := []LineRef{{Name: "UP_MAIN"}}

	older := candidate(t, res, lines, "10:00", "11:00", d.Add(1*time.Hour))
	newer := candidate(t, res, lines, "10:00", "11:00", d.Add(2*time.Hour))

	result := Plan([]Candidate{newer, older}, nil)
	require.Len(t, result.Assigned, 2)

	assert.Equal(t, older.Demand, assignmentFor(t, result, older.ID).Window)
	assert.Equal(t, time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC),
		assignmentFor(t, result, newer.ID).Window.From)
}

func TestPlan_Deterministic(t *testing.T) {
	// GIVEN: the same candidates presented in different orders
	// THEN: every plan is identical

	d := day(2026, time.March, 10)
	res := NewResourceKey("GZB-MUT", d)
	lines := []LineRef{{Name: "UP_MAIN", Affected: []string{"UP_LOOP"}}}

	cands := []Candidate{
		candidate(t, res, lines, "09:00", "10:30", d.Add(3*time.Hour)),
		candidate(t, res, lines, "10:00", "11:00", d.Add(1*time.Hour)),
		candidate(t, res, lines, "10:00", "12:00", d.Add(2*time.Hour)),
	}

	base := Plan(cands, nil)
	reversed := []Candidate{cands[2], cands[1], cands[0]}
	again := Plan(reversed, nil)

	require.Equal(t, len(base.Assigned), len(again.Assigned))
	for i := range base.Assigned {
		assert.Equal(t, base.Assigned[i], again.Assigned[i])
	}
	assert.Equal(t, base.Unallocable, again.Unallocable)
}

func TestPlan_ResultNeverOverlaps(t *testing.T) {
	// The planner's own output must satisfy the no-overlap invariant.
	d := day(2026, time.March, 10)
	res := NewResourceKey("GZB-MUT", d)
	lines := []LineRef{{Name: "UP_MAIN"}}

	var cands []Candidate
	for i := 0; i < 6; i++ {
		cands = append(cands, candidate(t, res, lines, "10:00", "11:00", d.Add(time.Duration(i)*time.Minute)))
	}
	fixed := booking(t, res, lines, "12:00", "13:00")

	result := Plan(cands, []Booking{fixed})

	pool := []Booking{fixed}
	for _, a := range result.Assigned {
		pool = append(pool, Booking{ID: a.ID, Resource: res, Lines: lines, Window: a.Window})
	}
	assert.Nil(t, CheckNoOverlap(pool))
}
