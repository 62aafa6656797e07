package schedule

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKey identifies the contended physical unit: one mission block (a
// block section or yard) on one calendar day. Conflict detection never
// crosses resource keys.
type ResourceKey struct {
	MissionBlock string
	Date         string // calendar day, "2006-01-02"
}

// NewResourceKey builds the key from a mission block name and a date.
func NewResourceKey(missionBlock string, date time.Time) ResourceKey {
	return ResourceKey{MissionBlock: missionBlock, Date: date.Format("2006-01-02")}
}

// LineRef names one line or yard road within a mission block, together with
// the explicit set of other lines the work interferes with. Adjacency is
// declared per request, never inferred from track geometry.
type LineRef struct {
	Name     string
	Affected []string
}

// Interacts reports whether work on a and work on b contend for the same
// physical track: they name the same line, or either lists the other's line
// in its affected set.
func (a LineRef) Interacts(b LineRef) bool {
	if a.Name == b.Name {
		return true
	}
	for _, l := range a.Affected {
		if l == b.Name {
			return true
		}
	}
	for _, l := range b.Affected {
		if l == a.Name {
			return true
		}
	}
	return false
}

// LinesInteract reports whether any line of a contends with any line of b.
func LinesInteract(a, b []LineRef) bool {
	for _, la := range a {
		for _, lb := range b {
			if la.Interacts(lb) {
				return true
			}
		}
	}
	return false
}

// Booking is one committed or candidate occupation of a resource, as seen by
// the conflict detector.
type Booking struct {
	ID       uuid.UUID
	Resource ResourceKey
	Lines    []LineRef
	Window   Window
}

// Conflicts reports whether the two bookings contend: same resource,
// interacting lines, overlapping windows.
func (b Booking) Conflicts(other Booking) bool {
	if b.Resource != other.Resource {
		return false
	}
	if !LinesInteract(b.Lines, other.Lines) {
		return false
	}
	return b.Window.Overlaps(other.Window)
}

// FindConflicts returns every member of pool that candidate conflicts with.
// The candidate itself (matching ID) is skipped so a booking can be checked
// against a pool it is already part of.
func FindConflicts(candidate Booking, pool []Booking) []Booking {
	var out []Booking
	for _, b := range pool {
		if b.ID == candidate.ID {
			continue
		}
		if candidate.Conflicts(b) {
			out = append(out, b)
		}
	}
	return out
}

// CheckNoOverlap verifies the core invariant over a committed pool: no two
// bookings on the same resource with interacting lines may overlap. It is
// run before every allocation or revision commit; a non-nil result means the
// batch must roll back.
func CheckNoOverlap(pool []Booking) *OverlapViolation {
	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			if pool[i].Conflicts(pool[j]) {
				return &OverlapViolation{A: pool[i].ID, B: pool[j].ID}
			}
		}
	}
	return nil
}

// OverlapViolation names the pair of bookings that breaks the no-overlap
// invariant.
type OverlapViolation struct {
	A uuid.UUID
	B uuid.UUID
}
