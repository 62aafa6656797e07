package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Candidate is one accepted request awaiting a slot within a single
// (resource, date) group.
type Candidate struct {
	ID       uuid.UUID
	Resource ResourceKey
	Lines    []LineRef
	Demand   Window
	Created  time.Time
}

// Assignment is the planner's verdict for one candidate.
type Assignment struct {
	ID     uuid.UUID
	Window Window
}

// PlanResult carries the outcome of planning one group. Unallocable
// candidates could not be fitted anywhere on their block date; they stay in
// the awaiting pool for manual handling and never abort the rest.
type PlanResult struct {
	Assigned    []Assignment
	Unallocable []uuid.UUID
}

// Plan assigns conflict-free windows to every candidate of one resource
// group, against the fixed bookings that the batch must not move (sanctioned
// slots and committed windows of the other urgency class).
//
// Policy: candidates are ordered by demand start, then creation time, then
// ID, so planning is deterministic. Each candidate keeps its demanded window
// when conflict-free; otherwise it is shifted to the earliest
// non-conflicting start at or after the demanded start. The shifted start
// must still fall on the block date (the window itself may run past
// midnight, matching demand normalization).
func Plan(candidates []Candidate, fixed []Booking) PlanResult {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Demand.From.Equal(ordered[j].Demand.From) {
			return ordered[i].Demand.From.Before(ordered[j].Demand.From)
		}
		if !ordered[i].Created.Equal(ordered[j].Created) {
			return ordered[i].Created.Before(ordered[j].Created)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	occupied := make([]Booking, len(fixed))
	copy(occupied, fixed)

	var result PlanResult
	for _, cand := range ordered {
		window, ok := place(cand, occupied)
		if !ok {
			result.Unallocable = append(result.Unallocable, cand.ID)
			continue
		}
		result.Assigned = append(result.Assigned, Assignment{ID: cand.ID, Window: window})
		occupied = append(occupied, Booking{
			ID:       cand.ID,
			Resource: cand.Resource,
			Lines:    cand.Lines,
			Window:   window,
		})
	}
	return result
}

// place finds the earliest feasible window for cand against occupied.
func place(cand Candidate, occupied []Booking) (Window, bool) {
	dayStart := cand.Demand.From
	dayEnd := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(),
		0, 0, 0, 0, dayStart.Location()).AddDate(0, 0, 1)

	for _, start := range candidateStarts(cand, occupied) {
		if !start.Before(dayEnd) {
			break // start would slip off the block date
		}
		window := cand.Demand.ShiftTo(start)
		trial := Booking{ID: cand.ID, Resource: cand.Resource, Lines: cand.Lines, Window: window}
		if len(FindConflicts(trial, occupied)) == 0 {
			return window, true
		}
	}
	return Window{}, false
}

// candidateStarts enumerates the only starts worth trying, ascending: the
// demanded start itself, then the end of every occupied window at or after
// it. Any feasible placement is left-adjacent to one of these.
func candidateStarts(cand Candidate, occupied []Booking) []time.Time {
	starts := []time.Time{cand.Demand.From}
	for _, b := range occupied {
		if b.Resource != cand.Resource {
			continue
		}
		if !LinesInteract(b.Lines, cand.Lines) {
			continue
		}
		if b.Window.To.After(cand.Demand.From) {
			starts = append(starts, b.Window.To)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts
}
