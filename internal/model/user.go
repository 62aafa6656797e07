package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles in the approval hierarchy plus operational roles. Officers form the
// supervisory ladder; managers are department-scoped first-tier approvers;
// board controllers run allocation and day-of revisions.
const (
	RoleUser            = "user"
	RoleJuniorOfficer   = "junior_officer"
	RoleSeniorOfficer   = "senior_officer"
	RoleBranchOfficer   = "branch_officer"
	RoleManager         = "manager"
	RoleBoardController = "board_controller"
	RoleAdmin           = "admin"
)

// Maintenance departments that raise block requests.
const (
	DeptEngineering = "ENGG"
	DeptSignal      = "SNT"
	DeptTraction    = "TRD"
	DeptOperating   = "OPERATING"
)

// User represents the central user entity for logic and database structure
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username   string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone      string         `gorm:"type:varchar(20);not null" json:"phone"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Role       string         `gorm:"type:varchar(30);not null" json:"role"`
	Department string         `gorm:"type:varchar(20);not null" json:"department"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleJuniorOfficer, RoleSeniorOfficer, RoleBranchOfficer,
		RoleManager, RoleBoardController, RoleAdmin:
		return true
	}
	return false
}

// ValidDepartment reports whether dept is one of the known departments.
func ValidDepartment(dept string) bool {
	switch dept {
	case DeptEngineering, DeptSignal, DeptTraction, DeptOperating:
		return true
	}
	return false
}
