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
)

// lockAttempts bounds how often a batch retries its resource lock before
// surfacing ErrResourceBusy to the caller.
const (
	lockAttempts = 3
	lockBackoff  = 150 * time.Millisecond
)

// SlotNotifier pushes slot-change events to connected board-controller
// views. A nil notifier disables pushes.
type SlotNotifier interface {
	BroadcastEvent(event string, payload interface{})
}

// BatchResult is the outcome of one allocation run.
type BatchResult struct {
	Allocated   []BlockResponse `json:"allocated"`
	Unallocable []BlockResponse `json:"unallocable"`
}

type AllocationService interface {
	// AllocateSlots assigns optimized windows to every accepted request in
	// the date range, one atomic batch per (mission block, date). Urgent
	// mode processes only Urgent Block / Emergency requests; routine mode
	// processes the rest against whatever the urgent pass already committed.
	AllocateSlots(ctx context.Context, fromDate, toDate string, urgentMode bool, actorID string) (BatchResult, error)
}

type allocationService struct {
	blocks repository.BlockRepository
	audits repository.AuditRepository
	txm    repository.TransactionManager
	hub    SlotNotifier
	log    *zap.Logger
	sleep  func(time.Duration)
}

func NewAllocationService(
	blocks repository.BlockRepository,
	audits repository.AuditRepository,
	txm repository.TransactionManager,
	hub SlotNotifier,
	log *zap.Logger,
) AllocationService {
	return &allocationService{
		blocks: blocks,
		audits: audits,
		txm:    txm,
		hub:    hub,
		log:    log,
		sleep:  time.Sleep,
	}
}

func urgentCorridors() []string {
	return []string{model.CorridorUrgent, model.CorridorEmergency}
}

func routineCorridors() []string {
	return []string{model.CorridorRegular, model.CorridorOutside, model.CorridorMega}
}

func (s *allocationService) AllocateSlots(ctx context.Context, fromDate, toDate string, urgentMode bool, actorID string) (BatchResult, error) {
	from, err := time.ParseInLocation("2006-01-02", fromDate, time.Local)
	if err != nil {
		return BatchResult{}, validationErr("from_date", "expected format 2006-01-02")
	}
	to, err := time.ParseInLocation("2006-01-02", toDate, time.Local)
	if err != nil {
		return BatchResult{}, validationErr("to_date", "expected format 2006-01-02")
	}
	if to.Before(from) {
		return BatchResult{}, validationErr("to_date", "must not precede from_date")
	}

	actor, err := uuid.Parse(actorID)
	if err != nil {
		return BatchResult{}, validationErr("actor_id", "invalid uuid")
	}

	corridors := routineCorridors()
	if urgentMode {
		corridors = urgentCorridors()
	}

	pending, err := s.blocks.ListAwaitingAllocation(ctx, from, to, corridors)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to load allocation pool: %w", err)
	}

	// Groups are independent batches: different resources or dates never
	// wait on each other and commit separately.
	type group struct {
		missionBlock string
		date         time.Time
	}
	var order []group
	seen := make(map[schedule.ResourceKey]bool)
	for _, b := range pending {
		key := schedule.NewResourceKey(b.MissionBlock, b.Date)
		if !seen[key] {
			seen[key] = true
			order = append(order, group{missionBlock: b.MissionBlock, date: b.Date})
		}
	}

	var result BatchResult
	for _, g := range order {
		allocated, unallocable, groupErr := s.allocateGroup(ctx, g.missionBlock, g.date, corridors, actor)
		if groupErr != nil {
			return result, groupErr
		}
		result.Allocated = append(result.Allocated, allocated...)
		result.Unallocable = append(result.Unallocable, unallocable...)
	}
	return result, nil
}

// allocateGroup recomputes one (mission block, date) batch under its
// advisory lock. Either every assignment in the group commits or none does.
func (s *allocationService) allocateGroup(ctx context.Context, missionBlock string, date time.Time, corridors []string, actor uuid.UUID) ([]BlockResponse, []BlockResponse, error) {
	key := schedule.NewResourceKey(missionBlock, date)
	lockKey := key.MissionBlock + "@" + key.Date

	var allocated, unallocable []BlockResponse

	for attempt := 1; ; attempt++ {
		allocated = allocated[:0]
		unallocable = unallocable[:0]

		err := s.txm.RunInLockedTx(ctx, []string{lockKey}, func(txCtx context.Context) error {
			pool, loadErr := s.blocks.ListActiveByResourceDate(txCtx, missionBlock, date)
			if loadErr != nil {
				return fmt.Errorf("failed to load resource pool: %w", loadErr)
			}

			inClass := make(map[string]bool, len(corridors))
			for _, c := range corridors {
				inClass[c] = true
			}

			var candidates []schedule.Candidate
			var fixed []schedule.Booking
			byID := make(map[uuid.UUID]*model.BlockRequest, len(pool))
			for i := range pool {
				b := &pool[i]
				byID[b.ID] = b
				switch {
				case inClass[b.CorridorType] && (b.State == model.StateAwaitingSlot || b.State == model.StateSlotOffered):
					candidates = append(candidates, schedule.Candidate{
						ID:       b.ID,
						Resource: key,
						Lines:    lineRefs(b),
						Demand:   schedule.Window{From: b.DemandTimeFrom, To: b.DemandTimeTo},
						Created:  b.CreatedAt,
					})
				case b.Active() && committedWindow(b.State):
					// Only committed windows constrain the plan: sanctioned
					// slots and the other class's standing offers. Pending
					// approvals and unplanned demands hold no slot yet.
					from, to := b.EffectiveWindow()
					fixed = append(fixed, schedule.Booking{
						ID:       b.ID,
						Resource: key,
						Lines:    lineRefs(b),
						Window:   schedule.Window{From: from, To: to},
					})
				}
			}

			if len(candidates) == 0 {
				return nil
			}

			plan := schedule.Plan(candidates, fixed)

			committed := append([]schedule.Booking(nil), fixed...)
			var allocatedIDs, unallocableIDs []string
			for _, a := range plan.Assigned {
				b := byID[a.ID]
				windowFrom, windowTo := a.Window.From, a.Window.To
				b.OptimizeTimeFrom = &windowFrom
				b.OptimizeTimeTo = &windowTo
				b.OptimizeStatus = true
				b.State = model.StateSlotOffered
				if updateErr := s.blocks.UpdateWithVersion(txCtx, b); updateErr != nil {
					// Any member failing aborts and rolls back the whole
					// group; partial reallocation is a correctness violation.
					return fmt.Errorf("failed to commit assignment for %s: %w", b.DivisionID, updateErr)
				}
				committed = append(committed, schedule.Booking{
					ID:       b.ID,
					Resource: key,
					Lines:    lineRefs(b),
					Window:   a.Window,
				})
				allocated = append(allocated, toBlockResponse(b))
				allocatedIDs = append(allocatedIDs, b.DivisionID)
			}
			for _, id := range plan.Unallocable {
				b := byID[id]
				unallocable = append(unallocable, toBlockResponse(b))
				unallocableIDs = append(unallocableIDs, b.DivisionID)
			}

			// Commit-time invariant re-check. A violation here means a bug
			// upstream; it is fatal for the batch and never patched over.
			if v := schedule.CheckNoOverlap(committed); v != nil {
				s.log.Error("overlapping windows detected at allocation commit",
					zap.String("mission_block", missionBlock),
					zap.String("date", key.Date),
					zap.String("booking_a", v.A.String()),
					zap.String("booking_b", v.B.String()),
				)
				return ErrSchedulingConflict
			}

			details, _ := json.Marshal(map[string]interface{}{
				"mission_block": missionBlock,
				"date":          key.Date,
				"allocated":     allocatedIDs,
				"unallocable":   unallocableIDs,
			})
			audit := model.AuditLog{
				UserID:     &actor,
				Action:     model.ActionAllocateSlots,
				EntityID:   lockKey,
				EntityName: missionBlock,
				Details:    string(details),
			}
			return s.audits.Log(txCtx, &audit)
		})

		if errors.Is(err, repository.ErrLockNotAcquired) {
			if attempt >= lockAttempts {
				return nil, nil, ErrResourceBusy
			}
			s.sleep(time.Duration(attempt) * lockBackoff)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		break
	}

	if s.hub != nil && len(allocated) > 0 {
		s.hub.BroadcastEvent("slots_allocated", map[string]interface{}{
			"mission_block": missionBlock,
			"date":          key.Date,
			"count":         len(allocated),
		})
	}
	return allocated, unallocable, nil
}

// committedWindow reports whether the state carries an allocator- or
// controller-assigned window that later batches must plan around.
func committedWindow(state string) bool {
	switch state {
	case model.StateSlotOffered, model.StateUserAccepted, model.StateSanctioned, model.StateRevised:
		return true
	}
	return false
}

func lineRefs(b *model.BlockRequest) []schedule.LineRef {
	refs := make([]schedule.LineRef, 0, len(b.LineSections))
	for _, ls := range b.LineSections {
		refs = append(refs, schedule.LineRef{Name: ls.Name, Affected: ls.AffectedLines})
	}
	return refs
}
