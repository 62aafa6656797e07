package repository

import (
	"context"
	"errors"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleVersion signals that an optimistic-concurrency update lost a race:
// the row's version moved since it was read.
var ErrStaleVersion = errors.New("block request was modified concurrently")

// BlockFilter narrows listing queries for approval queues and dashboards.
type BlockFilter struct {
	Department   string
	State        string
	MissionBlock string
	Date         *time.Time
	UserID       *uuid.UUID
	Page         int
	Limit        int
	Ascending    bool
}

// BlockRepository is the data-access surface for block requests. All reads
// and writes honor a transaction injected through the context.
type BlockRepository interface {
	Create(ctx context.Context, req *model.BlockRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BlockRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.BlockRequest, error)
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.BlockRequest, error)
	List(ctx context.Context, filter BlockFilter) ([]model.BlockRequest, int64, error)
	ListAwaitingAllocation(ctx context.Context, from, to time.Time, corridorTypes []string) ([]model.BlockRequest, error)
	ListActiveByResourceDate(ctx context.Context, missionBlock string, date time.Time) ([]model.BlockRequest, error)
	UpdateWithVersion(ctx context.Context, req *model.BlockRequest) error
	CountByDivisionPrefix(ctx context.Context, prefix string) (int64, error)
}

type blockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) Create(ctx context.Context, req *model.BlockRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *blockRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.BlockRequest, error) {
	var req model.BlockRequest
	if err := GetDB(ctx, r.db).Preload("LineSections").Preload("User").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *blockRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.BlockRequest, error) {
	var req model.BlockRequest
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	// Associations are loaded outside the locking clause; FOR UPDATE with a
	// join would lock unrelated rows.
	if err := GetDB(ctx, r.db).Where("block_request_id = ?", id).Find(&req.LineSections).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *blockRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.BlockRequest, error) {
	var reqs []model.BlockRequest
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		if err := GetDB(ctx, r.db).Where("block_request_id = ?", reqs[i].ID).Find(&reqs[i].LineSections).Error; err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

func (r *blockRepository) List(ctx context.Context, filter BlockFilter) ([]model.BlockRequest, int64, error) {
	db := GetDB(ctx, r.db)

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Department != "" {
			q = q.Where("department = ?", filter.Department)
		}
		if filter.State != "" {
			q = q.Where("state = ?", filter.State)
		}
		if filter.MissionBlock != "" {
			q = q.Where("mission_block = ?", filter.MissionBlock)
		}
		if filter.Date != nil {
			q = q.Where("date = ?", filter.Date.Format("2006-01-02"))
		}
		if filter.UserID != nil {
			q = q.Where("user_id = ?", *filter.UserID)
		}
		return q
	}

	var total int64
	if err := apply(db.Model(&model.BlockRequest{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	order := "created_at DESC"
	if filter.Ascending {
		order = "created_at ASC"
	}

	var reqs []model.BlockRequest
	err := apply(db.Preload("LineSections").Preload("User")).
		Order(order).
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

func (r *blockRepository) ListAwaitingAllocation(ctx context.Context, from, to time.Time, corridorTypes []string) ([]model.BlockRequest, error) {
	var reqs []model.BlockRequest
	err := GetDB(ctx, r.db).
		Preload("LineSections").
		Where("date >= ? AND date <= ?", from.Format("2006-01-02"), to.Format("2006-01-02")).
		Where("state IN ?", []string{model.StateAwaitingSlot, model.StateSlotOffered}).
		Where("corridor_type IN ?", corridorTypes).
		Order("date, mission_block, demand_time_from, created_at").
		Find(&reqs).Error
	return reqs, err
}

func (r *blockRepository) ListActiveByResourceDate(ctx context.Context, missionBlock string, date time.Time) ([]model.BlockRequest, error) {
	var reqs []model.BlockRequest
	err := GetDB(ctx, r.db).
		Preload("LineSections").
		Where("mission_block = ? AND date = ?", missionBlock, date.Format("2006-01-02")).
		Where("state NOT IN ?", []string{model.StateRejected, model.StateUserRejected, model.StateCancelled}).
		Find(&reqs).Error
	return reqs, err
}

// UpdateWithVersion saves the request only if its version column still
// matches, bumping it by one. A lost race returns ErrStaleVersion.
func (r *blockRepository) UpdateWithVersion(ctx context.Context, req *model.BlockRequest) error {
	currentVersion := req.Version
	req.Version = currentVersion + 1

	result := GetDB(ctx, r.db).
		Model(&model.BlockRequest{}).
		Where("id = ? AND version = ?", req.ID, currentVersion).
		Select("*").
		Omit("created_at", "LineSections", "User").
		Updates(req)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		req.Version = currentVersion
		return ErrStaleVersion
	}
	return nil
}

func (r *blockRepository) CountByDivisionPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.BlockRequest{}).
		Where("division_id LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}
