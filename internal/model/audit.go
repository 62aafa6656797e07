package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions, one per state transition of the block lifecycle. Every
// transition writes exactly one row in the same transaction, so report
// totals can be reproduced from this log.
const (
	ActionCreateBlockRequest = "CREATE_BLOCK_REQUEST"
	ActionAcceptBlockRequest = "ACCEPT_BLOCK_REQUEST"
	ActionRejectBlockRequest = "REJECT_BLOCK_REQUEST"
	ActionAllocateSlots      = "ALLOCATE_SLOTS"
	ActionUserConfirmSlot    = "USER_CONFIRM_SLOT"
	ActionReviseSlots        = "REVISE_SLOTS"
	ActionCancelBlockRequest = "CANCEL_BLOCK_REQUEST"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated job
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/division code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
