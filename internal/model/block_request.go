package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Corridor type classifies a block request and drives both the approval
// chain shortcut and which allocation pool (urgent vs routine) it enters.
const (
	CorridorRegular   = "CORRIDOR"
	CorridorOutside   = "OUTSIDE_CORRIDOR"
	CorridorUrgent    = "URGENT_BLOCK"
	CorridorEmergency = "EMERGENCY"
	CorridorMega      = "MEGA"
)

// Lifecycle states of a block request. Transitions are one-way except
// SANCTIONED <-> REVISED, which may cycle until the block date.
const (
	StatePendingApproval = "PENDING_APPROVAL"
	StateRejected        = "REJECTED"
	StateAwaitingSlot    = "AWAITING_SLOT"
	StateSlotOffered     = "SLOT_OFFERED"
	StateUserAccepted    = "USER_ACCEPTED"
	StateUserRejected    = "USER_REJECTED"
	StateSanctioned      = "SANCTIONED"
	StateRevised         = "REVISED"
	StateCancelled       = "CANCELLED"
)

// Coarse status values derived from the state for listing screens.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Decision values recorded per approver.
const (
	DecisionAccepted = "ACCEPTED"
	DecisionRejected = "REJECTED"
)

// User slot confirmation values.
const (
	UserStatusYes = "yes"
	UserStatusNo  = "no"
)

// Line section kinds — the tagged-variant resource descriptor. A block
// request contends for either a running line of a block section or a
// road/stream of a yard, never an untyped "whichever field is set" blob.
const (
	LineKindLine     = "LINE"
	LineKindYardRoad = "YARD_ROAD"
)

// BlockRequest is the central entity: one maintenance department's demand to
// close a track resource on a given date, tracked from creation through
// approval, slot allocation, user confirmation and revision.
type BlockRequest struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DivisionID string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"division_id"`

	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Department    string    `gorm:"type:varchar(20);not null;index:idx_dept_state" json:"department"`
	Section       string    `gorm:"type:varchar(100);not null" json:"section"`
	Depot         string    `gorm:"type:varchar(100)" json:"depot"`
	MissionBlock  string    `gorm:"type:varchar(100);not null;index:idx_resource_date" json:"mission_block"`
	RequesterRole string    `gorm:"type:varchar(30);not null" json:"requester_role"` // role snapshot at creation

	CorridorType string `gorm:"type:varchar(20);not null" json:"corridor_type"`
	WorkType     string `gorm:"type:varchar(100)" json:"work_type"`
	Activity     string `gorm:"type:varchar(255)" json:"activity"`

	Date               time.Time  `gorm:"type:date;not null;index:idx_resource_date" json:"date"`
	DemandTimeFrom     time.Time  `gorm:"not null" json:"demand_time_from"`
	DemandTimeTo       time.Time  `gorm:"not null" json:"demand_time_to"`
	OptimizeTimeFrom   *time.Time `json:"optimize_time_from"`
	OptimizeTimeTo     *time.Time `json:"optimize_time_to"`
	SanctionedTimeFrom *time.Time `json:"sanctioned_time_from"`
	SanctionedTimeTo   *time.Time `json:"sanctioned_time_to"`

	State             string  `gorm:"type:varchar(30);not null;default:'PENDING_APPROVAL';index:idx_dept_state" json:"state"`
	ApprovalStage     int     `gorm:"not null;default:0" json:"approval_stage"`
	ManagerAcceptance bool    `gorm:"not null;default:false" json:"manager_acceptance"`
	OptimizeStatus    bool    `gorm:"not null;default:false" json:"optimize_status"`
	UserStatus        *string `gorm:"type:varchar(5)" json:"user_status"` // "yes" / "no", nil until the user responds
	RejectionRemark   string  `gorm:"type:text" json:"rejection_remark"`
	Version           int     `gorm:"not null;default:1" json:"-"` // optimistic concurrency guard

	// Safety payload: carried for downstream consumers, never interpreted
	// by the scheduler.
	PowerBlockRequired   bool            `gorm:"not null;default:false" json:"power_block_required"`
	SntDisconnection     bool            `gorm:"not null;default:false" json:"snt_disconnection"`
	FreshCautionImposed  bool            `gorm:"not null;default:false" json:"fresh_caution_imposed"`
	FreshCautionSpeed    decimal.Decimal `gorm:"type:numeric(6,2);default:0" json:"fresh_caution_speed"`
	FreshCautionLocation string          `gorm:"type:varchar(255)" json:"fresh_caution_location"`

	LineSections []LineSection `gorm:"foreignKey:BlockRequestID;constraint:OnDelete:CASCADE" json:"line_sections"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineSection pins a request to a specific line or yard road within its
// mission block. AffectedLines is the explicit adjacency set: other lines or
// roads that the work interferes with even though they are not blocked.
type LineSection struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BlockRequestID uuid.UUID  `gorm:"type:uuid;not null;index" json:"block_request_id"`
	Kind           string     `gorm:"type:varchar(10);not null" json:"kind"` // LINE or YARD_ROAD
	Name           string     `gorm:"type:varchar(100);not null" json:"name"`
	AffectedLines  StringList `gorm:"type:jsonb" json:"affected_lines"`
}

// BlockDecision records one approver's decision on one request. The unique
// (request, approver) pair is what makes Decide idempotent: a retried
// identical decision finds its own row, a different decision conflicts.
type BlockDecision struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BlockRequestID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_request_approver" json:"block_request_id"`
	ApproverID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_request_approver" json:"approver_id"`
	Approver       *User     `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Stage          int       `gorm:"not null" json:"stage"`
	Decision       string    `gorm:"type:varchar(10);not null" json:"decision"`
	Remark         string    `gorm:"type:text" json:"remark"`
	CreatedAt      time.Time `json:"created_at"`
}

// allowedTransitions is the request state machine. Absence of an edge means
// the transition is a contract violation.
var allowedTransitions = map[string][]string{
	StatePendingApproval: {StateAwaitingSlot, StateRejected},
	StateAwaitingSlot:    {StateSlotOffered},
	StateSlotOffered:     {StateUserAccepted, StateUserRejected, StateSlotOffered},
	StateUserAccepted:    {StateSanctioned},
	StateSanctioned:      {StateRevised, StateCancelled},
	StateRevised:         {StateRevised, StateCancelled},
}

// CanTransition reports whether moving from -> to is a legal edge.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state admits no further transitions.
func IsTerminal(state string) bool {
	return len(allowedTransitions[state]) == 0
}

// Active reports whether the request still occupies its resource for
// conflict purposes. Rejected, user-rejected and cancelled requests leave
// the allocator's pool.
func (b *BlockRequest) Active() bool {
	switch b.State {
	case StateRejected, StateUserRejected, StateCancelled:
		return false
	}
	if b.UserStatus != nil && *b.UserStatus == UserStatusNo {
		return false
	}
	return true
}

// EffectiveWindow returns the window that currently binds the resource:
// sanctioned if set, else optimized, else the demanded window.
func (b *BlockRequest) EffectiveWindow() (time.Time, time.Time) {
	if b.SanctionedTimeFrom != nil && b.SanctionedTimeTo != nil {
		return *b.SanctionedTimeFrom, *b.SanctionedTimeTo
	}
	if b.OptimizeTimeFrom != nil && b.OptimizeTimeTo != nil {
		return *b.OptimizeTimeFrom, *b.OptimizeTimeTo
	}
	return b.DemandTimeFrom, b.DemandTimeTo
}

// Urgent reports whether the request belongs to the urgent allocation pool.
func (b *BlockRequest) Urgent() bool {
	return b.CorridorType == CorridorUrgent || b.CorridorType == CorridorEmergency
}

// ReadOnly reports whether the block date has passed relative to now; past
// requests are frozen for reporting.
func (b *BlockRequest) ReadOnly(now time.Time) bool {
	dayAfter := time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return !now.Before(dayAfter)
}

// Status collapses the state machine into the coarse PENDING/APPROVED/REJECTED
// view used by approval-queue listings.
func (b *BlockRequest) Status() string {
	switch b.State {
	case StateRejected, StateUserRejected, StateCancelled:
		return StatusRejected
	case StatePendingApproval:
		return StatusPending
	default:
		return StatusApproved
	}
}

// OverallStatus derives the display status shown to requesters and
// controllers, combining the state with the workflow flags.
func (b *BlockRequest) OverallStatus() string {
	switch b.State {
	case StatePendingApproval:
		if b.ManagerAcceptance {
			return "PENDING WITH OFFICER"
		}
		return "PENDING"
	case StateRejected:
		return "REJECTED"
	case StateAwaitingSlot:
		return "ACCEPTED"
	case StateSlotOffered:
		return "OPTIMIZED"
	case StateUserAccepted, StateSanctioned:
		return "SANCTIONED"
	case StateUserRejected:
		return "DECLINED BY USER"
	case StateRevised:
		return "REVISED"
	case StateCancelled:
		return "CANCELLED"
	}
	return b.State
}
