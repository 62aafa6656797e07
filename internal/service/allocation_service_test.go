package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/schedule"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAllocationFixture() (*allocationService, *memStore) {
	store := newMemStore()
	svc := &allocationService{
		blocks: &memBlockRepo{store: store},
		audits: &memAuditRepo{store: store},
		txm:    &memTxManager{store: store},
		log:    zap.NewNop(),
		sleep:  func(time.Duration) {},
	}
	return svc, store
}

func demandBlock(t *testing.T, missionBlock string, date time.Time, state, corridor, from, to string) model.BlockRequest {
	t.Helper()
	window, err := schedule.NewDayWindow(date, from, to)
	require.NoError(t, err)
	return model.BlockRequest{
		ID:             uuid.New(),
		DivisionID:     "BLK-" + uuid.NewString()[:8],
		UserID:         uuid.New(),
		Department:     model.DeptEngineering,
		MissionBlock:   missionBlock,
		CorridorType:   corridor,
		Date:           date,
		DemandTimeFrom: window.From,
		DemandTimeTo:   window.To,
		State:          state,
		LineSections: []model.LineSection{
			{Kind: model.LineKindLine, Name: "UP MAIN"},
		},
		CreatedAt: date.AddDate(0, 0, -3),
	}
}

func TestAllocateSlots_PendingApprovalsDoNotBlockThePlan(t *testing.T) {
	// GIVEN: one accepted request demanding 06:00-07:00, plus two requests on
	// the same mission block and date that are still pending approval and
	// demand overlapping windows
	// WHEN: the routine allocation runs
	// THEN: the accepted request gets its slot; the unapproved demands hold
	// no window yet and must not be treated as existing bookings

	svc, store := newAllocationFixture()
	date := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.Local)

	accepted := demandBlock(t, "UMB-YD", date, model.StateAwaitingSlot, model.CorridorRegular, "06:00", "07:00")
	pendingA := demandBlock(t, "UMB-YD", date, model.StatePendingApproval, model.CorridorRegular, "12:00", "13:00")
	pendingB := demandBlock(t, "UMB-YD", date, model.StatePendingApproval, model.CorridorRegular, "12:30", "13:30")
	store.putBlock(accepted)
	store.putBlock(pendingA)
	store.putBlock(pendingB)

	result, err := svc.AllocateSlots(context.Background(), "2026-03-10", "2026-03-10", false, uuid.NewString())
	require.NoError(t, err)

	require.Len(t, result.Allocated, 1)
	assert.Empty(t, result.Unallocable)
	assert.Equal(t, accepted.ID.String(), result.Allocated[0].ID)
	assert.Equal(t, model.StateSlotOffered, store.blocks[accepted.ID].State)

	// The pending requests stay untouched.
	assert.Equal(t, model.StatePendingApproval, store.blocks[pendingA.ID].State)
	assert.Nil(t, store.blocks[pendingA.ID].OptimizeTimeFrom)
	assert.Equal(t, model.StatePendingApproval, store.blocks[pendingB.ID].State)
}

func TestAllocateSlots_PlansAroundCommittedWindows(t *testing.T) {
	// GIVEN: a sanctioned block holding 06:00-07:00 and an accepted request
	// demanding the same window
	// WHEN: the routine allocation runs
	// THEN: the new slot starts where the sanctioned one ends

	svc, store := newAllocationFixture()
	date := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.Local)

	sanctioned := demandBlock(t, "UMB-YD", date, model.StateSanctioned, model.CorridorRegular, "06:00", "07:00")
	sanctioned.SanctionedTimeFrom = &sanctioned.DemandTimeFrom
	sanctioned.SanctionedTimeTo = &sanctioned.DemandTimeTo
	candidate := demandBlock(t, "UMB-YD", date, model.StateAwaitingSlot, model.CorridorRegular, "06:00", "07:00")
	store.putBlock(sanctioned)
	store.putBlock(candidate)

	result, err := svc.AllocateSlots(context.Background(), "2026-03-10", "2026-03-10", false, uuid.NewString())
	require.NoError(t, err)

	require.Len(t, result.Allocated, 1)
	updated := store.blocks[candidate.ID]
	require.NotNil(t, updated.OptimizeTimeFrom)
	assert.Equal(t, "07:00", updated.OptimizeTimeFrom.Format("15:04"))
}

func TestAllocateSlots_PartialWriteFailureRollsBackTheGroup(t *testing.T) {
	// GIVEN: three allocable requests on one mission block and date, with the
	// backing store failing on the third write
	// WHEN: the routine allocation runs
	// THEN: the run errors and none of the three carries an assignment

	svc, store := newAllocationFixture()
	date := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.Local)

	blocks := []model.BlockRequest{
		demandBlock(t, "UMB-YD", date, model.StateAwaitingSlot, model.CorridorRegular, "06:00", "07:00"),
		demandBlock(t, "UMB-YD", date, model.StateAwaitingSlot, model.CorridorRegular, "08:00", "09:00"),
		demandBlock(t, "UMB-YD", date, model.StateAwaitingSlot, model.CorridorRegular, "10:00", "11:00"),
	}
	for _, b := range blocks {
		store.putBlock(b)
	}
	store.failUpdatesAfter = 2

	_, err := svc.AllocateSlots(context.Background(), "2026-03-10", "2026-03-10", false, uuid.NewString())
	require.Error(t, err)

	for _, b := range blocks {
		stored := store.blocks[b.ID]
		assert.Equal(t, model.StateAwaitingSlot, stored.State)
		assert.Nil(t, stored.OptimizeTimeFrom)
		assert.False(t, stored.OptimizeStatus)
	}
	assert.Empty(t, store.audits)
}

func TestAllocateSlots_UrgentModeSkipsRoutineRequests(t *testing.T) {
	// GIVEN: one urgent and one routine accepted request
	// WHEN: the urgent pass runs
	// THEN: only the urgent request is allocated

	svc, store := newAllocationFixture()
	date := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.Local)

	urgent := demandBlock(t, "UMB-YD", date, model.StateAwaitingSlot, model.CorridorUrgent, "06:00", "07:00")
	routine := demandBlock(t, "UMB-YD", date, model.StateAwaitingSlot, model.CorridorRegular, "08:00", "09:00")
	store.putBlock(urgent)
	store.putBlock(routine)

	result, err := svc.AllocateSlots(context.Background(), "2026-03-10", "2026-03-10", true, uuid.NewString())
	require.NoError(t, err)

	require.Len(t, result.Allocated, 1)
	assert.Equal(t, urgent.ID.String(), result.Allocated[0].ID)
	assert.Equal(t, model.StateAwaitingSlot, store.blocks[routine.ID].State)
}

func TestCommittedWindow_TracksAssignedStatesOnly(t *testing.T) {
	for _, state := range []string{
		model.StateSlotOffered,
		model.StateUserAccepted,
		model.StateSanctioned,
		model.StateRevised,
	} {
		assert.True(t, committedWindow(state), state)
	}
	for _, state := range []string{
		model.StatePendingApproval,
		model.StateAwaitingSlot,
		model.StateRejected,
		model.StateCancelled,
	} {
		assert.False(t, committedWindow(state), state)
	}
}
