package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sanctionedToday(now time.Time) *model.BlockRequest {
	from := now.Add(2 * time.Hour)
	to := from.Add(time.Hour)
	return &model.BlockRequest{
		ID:                 uuid.New(),
		Date:               time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		State:              model.StateSanctioned,
		DemandTimeFrom:     from,
		DemandTimeTo:       to,
		SanctionedTimeFrom: &from,
		SanctionedTimeTo:   &to,
	}
}

func TestRevisable_SanctionedTodayInFuture(t *testing.T) {
	// GIVEN: a sanctioned block later today
	// THEN: it may be revised

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, revisable(sanctionedToday(now), now))

	// REVISED blocks may be revised again.
	b := sanctionedToday(now)
	b.State = model.StateRevised
	require.NoError(t, revisable(b, now))
}

func TestRevisable_RejectsWrongState(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	for _, state := range []string{
		model.StatePendingApproval,
		model.StateAwaitingSlot,
		model.StateSlotOffered,
		model.StateCancelled,
	} {
		b := sanctionedToday(now)
		b.State = state

		err := revisable(b, now)
		var precond *PreconditionError
		require.ErrorAs(t, err, &precond, state)
		assert.Equal(t, b.ID, precond.RequestID)
	}
}

func TestRevisable_RejectsOtherDays(t *testing.T) {
	// GIVEN: sanctioned blocks dated yesterday and tomorrow
	// THEN: neither is revisable today

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	for _, delta := range []int{-1, 1} {
		b := sanctionedToday(now)
		b.Date = b.Date.AddDate(0, 0, delta)

		err := revisable(b, now)
		var precond *PreconditionError
		require.ErrorAs(t, err, &precond)
		assert.Contains(t, precond.Reason, "today")
	}
}

func TestRevisable_RejectsCommencedBlock(t *testing.T) {
	// GIVEN: a sanctioned block whose window started five minutes ago
	// THEN: it can no longer be revised

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	b := sanctionedToday(now)
	from := now.Add(-5 * time.Minute)
	to := from.Add(time.Hour)
	b.SanctionedTimeFrom, b.SanctionedTimeTo = &from, &to

	err := revisable(b, now)
	var precond *PreconditionError
	require.ErrorAs(t, err, &precond)
	assert.Contains(t, precond.Reason, "commenced")
}

func TestReviseSlots_CancelRecordsCancellationAudit(t *testing.T) {
	// GIVEN: a sanctioned block later today
	// WHEN: the board controller cancels it
	// THEN: the block ends CANCELLED and the trail records a cancellation,
	// not a revision

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.Local)
	store := newMemStore()
	svc := &revisionService{
		blocks: &memBlockRepo{store: store},
		audits: &memAuditRepo{store: store},
		txm:    &memTxManager{store: store},
		log:    zap.NewNop(),
		now:    func() time.Time { return now },
		sleep:  func(time.Duration) {},
	}

	block := sanctionedToday(now)
	block.MissionBlock = "UMB-YD"
	block.DivisionID = "BLK-20260310-00001"
	store.putBlock(*block)
	controller := uuid.New()

	revised, err := svc.ReviseSlots(context.Background(), controller.String(), []string{block.ID.String()}, RevisionCancel, "", "")
	require.NoError(t, err)

	require.Len(t, revised, 1)
	assert.Equal(t, model.StateCancelled, revised[0].State)
	assert.Equal(t, model.StateCancelled, store.blocks[block.ID].State)

	require.Len(t, store.audits, 1)
	assert.Equal(t, model.ActionCancelBlockRequest, store.audits[0].Action)
	require.NotNil(t, store.audits[0].UserID)
	assert.Equal(t, controller, *store.audits[0].UserID)
}

func TestValidationError_Format(t *testing.T) {
	err := validationErr("date", "must be YYYY-MM-DD")
	assert.EqualError(t, err, "date: must be YYYY-MM-DD")

	bare := &ValidationError{Reason: "empty body"}
	assert.EqualError(t, bare, "empty body")
}

func TestRevisionConflictError_NamesBothSides(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	err := &RevisionConflictError{RequestID: a, ConflictingWith: b}
	assert.Contains(t, err.Error(), a.String())
	assert.Contains(t, err.Error(), b.String())
}
