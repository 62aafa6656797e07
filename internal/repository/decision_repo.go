package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DecisionRepository stores one row per approver decision. The unique
// (request, approver) index backs Decide's idempotence contract.
type DecisionRepository interface {
	Create(ctx context.Context, decision *model.BlockDecision) error
	FindByRequestAndApprover(ctx context.Context, requestID, approverID uuid.UUID) (*model.BlockDecision, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.BlockDecision, error)
}

type decisionRepository struct {
	db *gorm.DB
}

func NewDecisionRepository(db *gorm.DB) DecisionRepository {
	return &decisionRepository{db: db}
}

func (r *decisionRepository) Create(ctx context.Context, decision *model.BlockDecision) error {
	return GetDB(ctx, r.db).Create(decision).Error
}

func (r *decisionRepository) FindByRequestAndApprover(ctx context.Context, requestID, approverID uuid.UUID) (*model.BlockDecision, error) {
	var decision model.BlockDecision
	err := GetDB(ctx, r.db).
		First(&decision, "block_request_id = ? AND approver_id = ?", requestID, approverID).Error
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

func (r *decisionRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.BlockDecision, error) {
	var decisions []model.BlockDecision
	err := GetDB(ctx, r.db).
		Preload("Approver").
		Where("block_request_id = ?", requestID).
		Order("stage").
		Find(&decisions).Error
	return decisions, err
}
