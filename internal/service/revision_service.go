package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/schedule"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Bulk-override actions a board controller may apply to today's sanctioned
// slots.
const (
	RevisionContinue = "continue"
	RevisionPrepone  = "prepone"
	RevisionPostpone = "postpone"
	RevisionCancel   = "cancel"
)

type RevisionService interface {
	// ReviseSlots applies one action to a selected set of today's sanctioned
	// requests. Prepone/postpone rewrite the sanctioned window and re-run
	// conflict detection against the rest of the day's pool; any conflict
	// fails the whole batch and nothing changes.
	ReviseSlots(ctx context.Context, controllerID string, ids []string, action, newFrom, newTo string) ([]BlockResponse, error)
}

type revisionService struct {
	blocks repository.BlockRepository
	audits repository.AuditRepository
	txm    repository.TransactionManager
	hub    SlotNotifier
	log    *zap.Logger
	now    func() time.Time
	sleep  func(time.Duration)
}

func NewRevisionService(
	blocks repository.BlockRepository,
	audits repository.AuditRepository,
	txm repository.TransactionManager,
	hub SlotNotifier,
	log *zap.Logger,
) RevisionService {
	return &revisionService{
		blocks: blocks,
		audits: audits,
		txm:    txm,
		hub:    hub,
		log:    log,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

func (s *revisionService) ReviseSlots(ctx context.Context, controllerID string, ids []string, action, newFrom, newTo string) ([]BlockResponse, error) {
	controller, err := uuid.Parse(controllerID)
	if err != nil {
		return nil, validationErr("controller_id", "invalid uuid")
	}
	if len(ids) == 0 {
		return nil, validationErr("request_ids", "at least one request is required")
	}
	switch action {
	case RevisionContinue, RevisionPrepone, RevisionPostpone, RevisionCancel:
	default:
		return nil, validationErr("action", "must be continue, prepone, postpone or cancel")
	}
	if (action == RevisionPrepone || action == RevisionPostpone) && (newFrom == "" || newTo == "") {
		return nil, validationErr("new_window", "prepone/postpone require a new time window")
	}

	requestIDs := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return nil, validationErr("request_ids", "invalid uuid "+raw)
		}
		requestIDs = append(requestIDs, id)
	}

	// The advisory locks must be known before the transaction opens, so the
	// selection is read once up front just for its resource keys.
	lockKeys, err := s.resourceLockKeys(ctx, requestIDs)
	if err != nil {
		return nil, err
	}

	var revised []BlockResponse
	for attempt := 1; ; attempt++ {
		revised = revised[:0]

		txErr := s.txm.RunInLockedTx(ctx, lockKeys, func(txCtx context.Context) error {
			blocks, loadErr := s.blocks.FindByIDsForUpdate(txCtx, requestIDs)
			if loadErr != nil {
				return loadErr
			}
			if len(blocks) != len(requestIDs) {
				return fmt.Errorf("one or more block requests %w", ErrNotFound)
			}

			now := s.now()
			for i := range blocks {
				if precondErr := revisable(&blocks[i], now); precondErr != nil {
					return precondErr
				}
			}

			switch action {
			case RevisionContinue:
				// Acknowledges an in-progress plan; no state change.
				for i := range blocks {
					revised = append(revised, toBlockResponse(&blocks[i]))
				}
			case RevisionCancel:
				for i := range blocks {
					b := &blocks[i]
					b.State = model.StateCancelled
					if updateErr := s.blocks.UpdateWithVersion(txCtx, b); updateErr != nil {
						return fmt.Errorf("failed to cancel %s: %w", b.DivisionID, updateErr)
					}
					revised = append(revised, toBlockResponse(b))
				}
			default:
				if moveErr := s.moveWindows(txCtx, blocks, action, newFrom, newTo, now); moveErr != nil {
					return moveErr
				}
				for i := range blocks {
					revised = append(revised, toBlockResponse(&blocks[i]))
				}
			}

			selected := make([]string, 0, len(blocks))
			for i := range blocks {
				selected = append(selected, blocks[i].DivisionID)
			}
			details, _ := json.Marshal(map[string]interface{}{
				"action":     action,
				"selected":   selected,
				"new_window": newFrom + "-" + newTo,
			})
			auditAction := model.ActionReviseSlots
			if action == RevisionCancel {
				auditAction = model.ActionCancelBlockRequest
			}
			audit := model.AuditLog{
				UserID:     &controller,
				Action:     auditAction,
				EntityID:   action,
				EntityName: fmt.Sprintf("%d blocks", len(blocks)),
				Details:    string(details),
			}
			return s.audits.Log(txCtx, &audit)
		})

		if errors.Is(txErr, repository.ErrLockNotAcquired) {
			if attempt >= lockAttempts {
				return nil, ErrResourceBusy
			}
			s.sleep(time.Duration(attempt) * lockBackoff)
			continue
		}
		if txErr != nil {
			return nil, txErr
		}
		break
	}

	if s.hub != nil {
		s.hub.BroadcastEvent("slots_revised", map[string]interface{}{
			"action": action,
			"count":  len(revised),
		})
	}
	return revised, nil
}

// revisable enforces the not-yet-commenced invariant: only today's blocks
// whose effective window has not started may be revised or cancelled.
func revisable(b *model.BlockRequest, now time.Time) error {
	if b.State != model.StateSanctioned && b.State != model.StateRevised {
		return &PreconditionError{RequestID: b.ID, Reason: "only sanctioned blocks can be revised"}
	}
	if !sameDay(b.Date, now) {
		return &PreconditionError{RequestID: b.ID, Reason: "revision applies to today's blocks only"}
	}
	from, _ := b.EffectiveWindow()
	if !from.After(now) {
		return &PreconditionError{RequestID: b.ID, Reason: "block has already commenced"}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// moveWindows rewrites the sanctioned windows of the selection and re-runs
// conflict detection against everything else committed on the same resource
// and date. The first conflict aborts the batch.
func (s *revisionService) moveWindows(txCtx context.Context, blocks []model.BlockRequest, action, newFrom, newTo string, now time.Time) error {
	// Pools of untouched sanctioned bookings, one per resource key.
	pools := make(map[schedule.ResourceKey][]schedule.Booking)
	selected := make(map[uuid.UUID]bool, len(blocks))
	for i := range blocks {
		selected[blocks[i].ID] = true
	}

	for i := range blocks {
		b := &blocks[i]
		key := schedule.NewResourceKey(b.MissionBlock, b.Date)
		if _, ok := pools[key]; ok {
			continue
		}
		others, err := s.blocks.ListActiveByResourceDate(txCtx, b.MissionBlock, b.Date)
		if err != nil {
			return fmt.Errorf("failed to load sanctioned pool: %w", err)
		}
		var bookings []schedule.Booking
		for j := range others {
			o := &others[j]
			if selected[o.ID] || o.State == model.StateAwaitingSlot || o.State == model.StatePendingApproval {
				continue
			}
			from, to := o.EffectiveWindow()
			bookings = append(bookings, schedule.Booking{
				ID:       o.ID,
				Resource: key,
				Lines:    lineRefs(o),
				Window:   schedule.Window{From: from, To: to},
			})
		}
		pools[key] = bookings
	}

	for i := range blocks {
		b := &blocks[i]
		window, err := schedule.NewDayWindow(b.Date, newFrom, newTo)
		if err != nil {
			return validationErr("new_window", err.Error())
		}
		if !window.From.After(now) {
			return validationErr("new_window", "revised window must start in the future")
		}

		currentFrom, _ := b.EffectiveWindow()
		if action == RevisionPrepone && window.From.After(currentFrom) {
			return validationErr("new_window", "prepone must move the block earlier")
		}
		if action == RevisionPostpone && window.From.Before(currentFrom) {
			return validationErr("new_window", "postpone must move the block later")
		}

		key := schedule.NewResourceKey(b.MissionBlock, b.Date)
		trial := schedule.Booking{
			ID:       b.ID,
			Resource: key,
			Lines:    lineRefs(b),
			Window:   window,
		}
		if conflicts := schedule.FindConflicts(trial, pools[key]); len(conflicts) > 0 {
			return &RevisionConflictError{RequestID: b.ID, ConflictingWith: conflicts[0].ID}
		}

		b.SanctionedTimeFrom = &window.From
		b.SanctionedTimeTo = &window.To
		b.State = model.StateRevised
		if err := s.blocks.UpdateWithVersion(txCtx, b); err != nil {
			return fmt.Errorf("failed to revise %s: %w", b.DivisionID, err)
		}
		// Later members of the selection must not collide with this one.
		pools[key] = append(pools[key], trial)
	}

	// The committed pools must still satisfy the no-overlap invariant.
	for key, bookings := range pools {
		if v := schedule.CheckNoOverlap(bookings); v != nil {
			s.log.Error("overlapping windows detected at revision commit",
				zap.String("resource", key.MissionBlock+"@"+key.Date),
				zap.String("booking_a", v.A.String()),
				zap.String("booking_b", v.B.String()),
			)
			return ErrSchedulingConflict
		}
	}
	return nil
}

// resourceLockKeys reads the selection's resource keys ahead of the locked
// transaction.
func (s *revisionService) resourceLockKeys(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	keys := make(map[string]bool)
	for _, id := range ids {
		b, err := s.blocks.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("block request %s %w", id, ErrNotFound)
			}
			return nil, err
		}
		key := schedule.NewResourceKey(b.MissionBlock, b.Date)
		keys[key.MissionBlock+"@"+key.Date] = true
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out, nil
}
