package opportunities

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
)

// Repository exposes persistence helpers for opportunities.
type Repository interface {
	Create(tx *gorm.DB, opportunity *models.Opportunity) error
	GetByID(ctx context.Context, tenantID, opportunityID uuid.UUID) (*models.Opportunity, error)
	ListByPipeline(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]models.Opportunity, error)
	MoveStage(tx *gorm.DB, tenantID, opportunityID, stageID uuid.UUID) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an opportunities repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(tx *gorm.DB, opportunity *models.Opportunity) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(opportunity).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, tenantID, opportunityID uuid.UUID) (*models.Opportunity, error) {
	var opportunity models.Opportunity
	err := r.db.WithContext(ctx).
		First(&opportunity, "id = ? AND tenant_id = ?", opportunityID, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &opportunity, nil
}

func (r *repositoryImpl) ListByPipeline(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]models.Opportunity, error) {
	var opportunities []models.Opportunity
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND pipeline_id = ?", tenantID, pipelineID).
		Order("created_at ASC").
		Find(&opportunities).Error
	return opportunities, err
}

func (r *repositoryImpl) MoveStage(tx *gorm.DB, tenantID, opportunityID, stageID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	result := tx.Model(&models.Opportunity{}).
		Where("id = ? AND tenant_id = ?", opportunityID, tenantID).
		Update("stage_id", stageID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
