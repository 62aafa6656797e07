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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type LineSectionDTO struct {
	Kind          string   `json:"kind" binding:"required,oneof=LINE YARD_ROAD"`
	Name          string   `json:"name" binding:"required"`
	AffectedLines []string `json:"affected_lines"`
}

type CreateBlockRequestDTO struct {
	Section        string           `json:"section" binding:"required"`
	Depot          string           `json:"depot"`
	MissionBlock   string           `json:"mission_block" binding:"required"`
	CorridorType   string           `json:"corridor_type" binding:"required,oneof=CORRIDOR OUTSIDE_CORRIDOR URGENT_BLOCK EMERGENCY MEGA"`
	WorkType       string           `json:"work_type"`
	Activity       string           `json:"activity"`
	Date           string           `json:"date" binding:"required"`             // 2006-01-02
	DemandTimeFrom string           `json:"demand_time_from" binding:"required"` // 15:04
	DemandTimeTo   string           `json:"demand_time_to" binding:"required"`   // 15:04
	LineSections   []LineSectionDTO `json:"line_sections" binding:"required,min=1,dive"`

	PowerBlockRequired   bool   `json:"power_block_required"`
	SntDisconnection     bool   `json:"snt_disconnection"`
	FreshCautionImposed  bool   `json:"fresh_caution_imposed"`
	FreshCautionSpeed    string `json:"fresh_caution_speed"`
	FreshCautionLocation string `json:"fresh_caution_location"`
}

type LineSectionResponse struct {
	Kind          string   `json:"kind"`
	Name          string   `json:"name"`
	AffectedLines []string `json:"affected_lines"`
}

type BlockResponse struct {
	ID            string `json:"id"`
	DivisionID    string `json:"division_id"`
	UserID        string `json:"user_id"`
	RequesterName string `json:"requester_name,omitempty"`
	Department    string `json:"department"`
	Section       string `json:"section"`
	Depot         string `json:"depot"`
	MissionBlock  string `json:"mission_block"`
	CorridorType  string `json:"corridor_type"`
	WorkType      string `json:"work_type"`
	Activity      string `json:"activity"`

	Date               string  `json:"date"`
	DemandTimeFrom     string  `json:"demand_time_from"`
	DemandTimeTo       string  `json:"demand_time_to"`
	OptimizeTimeFrom   *string `json:"optimize_time_from"`
	OptimizeTimeTo     *string `json:"optimize_time_to"`
	SanctionedTimeFrom *string `json:"sanctioned_time_from"`
	SanctionedTimeTo   *string `json:"sanctioned_time_to"`

	State             string   `json:"state"`
	Status            string   `json:"status"`
	OverallStatus     string   `json:"overall_status"`
	ApprovalStage     int      `json:"approval_stage"`
	ApproverChain     []string `json:"approver_chain"`
	ManagerAcceptance bool     `json:"manager_acceptance"`
	OptimizeStatus    bool     `json:"optimize_status"`
	UserStatus        *string  `json:"user_status"`
	RejectionRemark   string   `json:"rejection_remark,omitempty"`

	LineSections []LineSectionResponse `json:"line_sections"`
	Decisions    []DecisionResponse    `json:"decisions,omitempty"`
	CreatedAt    string                `json:"created_at"`
}

// DecisionResponse is one entry of a request's approval trail.
type DecisionResponse struct {
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name,omitempty"`
	Stage        int    `json:"stage"`
	Decision     string `json:"decision"`
	Remark       string `json:"remark,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// --- Interface ---

type BlockRequestService interface {
	Create(ctx context.Context, userID string, req CreateBlockRequestDTO) (BlockResponse, error)
	Decide(ctx context.Context, requestID, approverID string, accept bool, remark string) (BlockResponse, error)
	UserConfirm(ctx context.Context, requestID, userID string, accept bool) (BlockResponse, error)
	Get(ctx context.Context, id string) (BlockResponse, error)
	List(ctx context.Context, filter repository.BlockFilter) ([]BlockResponse, int64, error)
}

type blockRequestService struct {
	blocks    repository.BlockRepository
	decisions repository.DecisionRepository
	audits    repository.AuditRepository
	users     repository.UserRepository
	txm       repository.TransactionManager
	log       *zap.Logger
	now       func() time.Time
}

func NewBlockRequestService(
	blocks repository.BlockRepository,
	decisions repository.DecisionRepository,
	audits repository.AuditRepository,
	users repository.UserRepository,
	txm repository.TransactionManager,
	log *zap.Logger,
) BlockRequestService {
	return &blockRequestService{
		blocks:    blocks,
		decisions: decisions,
		audits:    audits,
		users:     users,
		txm:       txm,
		log:       log,
		now:       time.Now,
	}
}

// --- Implementation ---

func (s *blockRequestService) Create(ctx context.Context, userID string, req CreateBlockRequestDTO) (BlockResponse, error) {
	creatorID, err := uuid.Parse(userID)
	if err != nil {
		return BlockResponse{}, validationErr("user_id", "invalid uuid")
	}

	creator, err := s.users.GetByID(ctx, creatorID.String())
	if err != nil {
		return BlockResponse{}, fmt.Errorf("creator %w", ErrNotFound)
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		return BlockResponse{}, validationErr("date", "expected format 2006-01-02")
	}

	window, err := schedule.NewDayWindow(date, req.DemandTimeFrom, req.DemandTimeTo)
	if err != nil {
		return BlockResponse{}, validationErr("demand window", err.Error())
	}

	cautionSpeed := decimal.Zero
	if req.FreshCautionSpeed != "" {
		cautionSpeed, err = decimal.NewFromString(req.FreshCautionSpeed)
		if err != nil {
			return BlockResponse{}, validationErr("fresh_caution_speed", "not a number")
		}
	}

	block := &model.BlockRequest{
		UserID:        creator.ID,
		Department:    creator.Department,
		Section:       req.Section,
		Depot:         req.Depot,
		MissionBlock:  req.MissionBlock,
		RequesterRole: creator.Role,
		CorridorType:  req.CorridorType,
		WorkType:      req.WorkType,
		Activity:      req.Activity,

		Date:           date,
		DemandTimeFrom: window.From,
		DemandTimeTo:   window.To,

		State: model.StatePendingApproval,

		PowerBlockRequired:   req.PowerBlockRequired,
		SntDisconnection:     req.SntDisconnection,
		FreshCautionImposed:  req.FreshCautionImposed,
		FreshCautionSpeed:    cautionSpeed,
		FreshCautionLocation: req.FreshCautionLocation,
	}
	for _, ls := range req.LineSections {
		block.LineSections = append(block.LineSections, model.LineSection{
			Kind:          ls.Kind,
			Name:          ls.Name,
			AffectedLines: ls.AffectedLines,
		})
	}

	prefix := "BLK-" + date.Format("20060102") + "-"
	err = s.txm.RunInLockedTx(ctx, []string{prefix}, func(txCtx context.Context) error {
		seq, countErr := s.blocks.CountByDivisionPrefix(txCtx, prefix)
		if countErr != nil {
			return fmt.Errorf("failed to number request: %w", countErr)
		}
		block.DivisionID = fmt.Sprintf("%s%05d", prefix, seq+1)

		if createErr := s.blocks.Create(txCtx, block); createErr != nil {
			return fmt.Errorf("failed to create block request: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"mission_block": block.MissionBlock,
			"date":          req.Date,
			"corridor_type": block.CorridorType,
			"demand_window": req.DemandTimeFrom + "-" + req.DemandTimeTo,
		})
		audit := model.AuditLog{
			UserID:     &creator.ID,
			Action:     model.ActionCreateBlockRequest,
			EntityID:   block.ID.String(),
			EntityName: block.DivisionID,
			Details:    string(details),
		}
		return s.audits.Log(txCtx, &audit)
	})
	if errors.Is(err, repository.ErrLockNotAcquired) {
		return BlockResponse{}, ErrResourceBusy
	}
	if err != nil {
		return BlockResponse{}, err
	}

	block.User = creator
	return toBlockResponse(block), nil
}

func (s *blockRequestService) Decide(ctx context.Context, requestID, approverID string, accept bool, remark string) (BlockResponse, error) {
	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return BlockResponse{}, validationErr("request_id", "invalid uuid")
	}
	decider, err := uuid.Parse(approverID)
	if err != nil {
		return BlockResponse{}, validationErr("approver_id", "invalid uuid")
	}
	// Rejection without a stated reason is a contract violation for every
	// caller, managers and admins alike.
	if !accept && remark == "" {
		return BlockResponse{}, validationErr("remark", "a rejection remark is required")
	}

	var block *model.BlockRequest
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		block, err = s.blocks.FindByIDForUpdate(txCtx, reqID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("block request %w", ErrNotFound)
			}
			return err
		}

		// Retried identical decisions are idempotent: return the current
		// state without a second transition event.
		prior, findErr := s.decisions.FindByRequestAndApprover(txCtx, reqID, decider)
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}
		if findErr == nil {
			wanted := model.DecisionRejected
			if accept {
				wanted = model.DecisionAccepted
			}
			if prior.Decision == wanted {
				return nil
			}
			return ErrConflictingDecision
		}

		if block.ReadOnly(s.now()) {
			return ErrReadOnly
		}
		if block.State != model.StatePendingApproval {
			return ErrAlreadyDecided
		}

		approver, userErr := s.users.GetByID(txCtx, decider.String())
		if userErr != nil {
			return fmt.Errorf("approver %w", ErrNotFound)
		}
		chain := schedule.ResolveChain(block.RequesterRole, block.Department, block.CorridorType)
		if !schedule.Authorized(chain, block.ApprovalStage, approver.Role, approver.Department, block.Department) {
			return ErrNotAuthorized
		}

		decision := model.BlockDecision{
			BlockRequestID: block.ID,
			ApproverID:     approver.ID,
			Stage:          block.ApprovalStage,
			Remark:         remark,
		}

		action := model.ActionAcceptBlockRequest
		if accept {
			decision.Decision = model.DecisionAccepted
			block.ManagerAcceptance = true
			block.ApprovalStage++
			if block.ApprovalStage >= len(chain) {
				block.State = model.StateAwaitingSlot
			}
		} else {
			decision.Decision = model.DecisionRejected
			block.State = model.StateRejected
			block.RejectionRemark = remark
			action = model.ActionRejectBlockRequest
		}

		if createErr := s.decisions.Create(txCtx, &decision); createErr != nil {
			return fmt.Errorf("failed to record decision: %w", createErr)
		}
		if updateErr := s.blocks.UpdateWithVersion(txCtx, block); updateErr != nil {
			if errors.Is(updateErr, repository.ErrStaleVersion) {
				return ErrAlreadyDecided
			}
			return updateErr
		}

		details, _ := json.Marshal(map[string]interface{}{
			"stage":  decision.Stage,
			"remark": remark,
			"chain":  chain,
		})
		audit := model.AuditLog{
			UserID:     &approver.ID,
			Action:     action,
			EntityID:   block.ID.String(),
			EntityName: block.DivisionID,
			Details:    string(details),
		}
		return s.audits.Log(txCtx, &audit)
	})
	if err != nil {
		return BlockResponse{}, err
	}

	return toBlockResponse(block), nil
}

func (s *blockRequestService) UserConfirm(ctx context.Context, requestID, userID string, accept bool) (BlockResponse, error) {
	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return BlockResponse{}, validationErr("request_id", "invalid uuid")
	}
	callerID, err := uuid.Parse(userID)
	if err != nil {
		return BlockResponse{}, validationErr("user_id", "invalid uuid")
	}

	var block *model.BlockRequest
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		block, err = s.blocks.FindByIDForUpdate(txCtx, reqID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("block request %w", ErrNotFound)
			}
			return err
		}

		if block.UserID != callerID {
			return ErrNotAuthorized
		}

		// A retried identical confirmation is a no-op.
		if block.UserStatus != nil {
			confirmed := *block.UserStatus == model.UserStatusYes
			if confirmed == accept {
				return nil
			}
			return ErrConflictingDecision
		}

		if block.ReadOnly(s.now()) {
			return ErrReadOnly
		}
		if block.State != model.StateSlotOffered {
			return ErrAlreadyDecided
		}

		if accept {
			status := model.UserStatusYes
			block.UserStatus = &status
			// Sanction the offered slot: the optimized window becomes the
			// confirmed one and binds the resource from here on.
			block.State = model.StateSanctioned
			block.SanctionedTimeFrom = block.OptimizeTimeFrom
			block.SanctionedTimeTo = block.OptimizeTimeTo
		} else {
			status := model.UserStatusNo
			block.UserStatus = &status
			block.State = model.StateUserRejected
		}

		if updateErr := s.blocks.UpdateWithVersion(txCtx, block); updateErr != nil {
			if errors.Is(updateErr, repository.ErrStaleVersion) {
				return ErrAlreadyDecided
			}
			return updateErr
		}

		details, _ := json.Marshal(map[string]interface{}{"accepted": accept})
		audit := model.AuditLog{
			UserID:     &callerID,
			Action:     model.ActionUserConfirmSlot,
			EntityID:   block.ID.String(),
			EntityName: block.DivisionID,
			Details:    string(details),
		}
		return s.audits.Log(txCtx, &audit)
	})
	if err != nil {
		return BlockResponse{}, err
	}

	return toBlockResponse(block), nil
}

func (s *blockRequestService) Get(ctx context.Context, id string) (BlockResponse, error) {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return BlockResponse{}, validationErr("id", "invalid uuid")
	}
	block, err := s.blocks.FindByID(ctx, reqID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return BlockResponse{}, fmt.Errorf("block request %w", ErrNotFound)
		}
		return BlockResponse{}, err
	}

	resp := toBlockResponse(block)
	decisions, err := s.decisions.ListByRequest(ctx, reqID)
	if err != nil {
		return BlockResponse{}, fmt.Errorf("failed to load decision trail: %w", err)
	}
	for i := range decisions {
		d := &decisions[i]
		entry := DecisionResponse{
			ApproverID: d.ApproverID.String(),
			Stage:      d.Stage,
			Decision:   d.Decision,
			Remark:     d.Remark,
			CreatedAt:  d.CreatedAt.Format(time.RFC3339),
		}
		if d.Approver != nil {
			entry.ApproverName = d.Approver.Username
		}
		resp.Decisions = append(resp.Decisions, entry)
	}
	return resp, nil
}

func (s *blockRequestService) List(ctx context.Context, filter repository.BlockFilter) ([]BlockResponse, int64, error) {
	blocks, total, err := s.blocks.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list block requests: %w", err)
	}
	out := make([]BlockResponse, 0, len(blocks))
	for i := range blocks {
		out = append(out, toBlockResponse(&blocks[i]))
	}
	return out, total, nil
}

// --- Helpers ---

func toBlockResponse(b *model.BlockRequest) BlockResponse {
	resp := BlockResponse{
		ID:           b.ID.String(),
		DivisionID:   b.DivisionID,
		UserID:       b.UserID.String(),
		Department:   b.Department,
		Section:      b.Section,
		Depot:        b.Depot,
		MissionBlock: b.MissionBlock,
		CorridorType: b.CorridorType,
		WorkType:     b.WorkType,
		Activity:     b.Activity,

		Date:           b.Date.Format("2006-01-02"),
		DemandTimeFrom: b.DemandTimeFrom.Format(time.RFC3339),
		DemandTimeTo:   b.DemandTimeTo.Format(time.RFC3339),

		State:             b.State,
		Status:            b.Status(),
		OverallStatus:     b.OverallStatus(),
		ApprovalStage:     b.ApprovalStage,
		ApproverChain:     schedule.ResolveChain(b.RequesterRole, b.Department, b.CorridorType),
		ManagerAcceptance: b.ManagerAcceptance,
		OptimizeStatus:    b.OptimizeStatus,
		UserStatus:        b.UserStatus,
		RejectionRemark:   b.RejectionRemark,
		CreatedAt:         b.CreatedAt.Format(time.RFC3339),
	}
	if b.User != nil {
		resp.RequesterName = b.User.Username
	}
	resp.OptimizeTimeFrom = fmtTimePtr(b.OptimizeTimeFrom)
	resp.OptimizeTimeTo = fmtTimePtr(b.OptimizeTimeTo)
	resp.SanctionedTimeFrom = fmtTimePtr(b.SanctionedTimeFrom)
	resp.SanctionedTimeTo = fmtTimePtr(b.SanctionedTimeTo)

	for _, ls := range b.LineSections {
		resp.LineSections = append(resp.LineSections, LineSectionResponse{
			Kind:          ls.Kind,
			Name:          ls.Name,
			AffectedLines: ls.AffectedLines,
		})
	}
	return resp
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
