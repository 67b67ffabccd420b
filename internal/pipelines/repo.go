package pipelines

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
)

// Repository exposes persistence helpers for pipelines and their stages.
type Repository interface {
	Create(ctx context.Context, pipeline *models.Pipeline) error
	GetByID(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]models.Pipeline, error)
	GetStage(ctx context.Context, pipelineID, stageID uuid.UUID) (*models.PipelineStage, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a pipelines repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, pipeline *models.Pipeline) error {
	return r.db.WithContext(ctx).Create(pipeline).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&pipeline, "id = ? AND tenant_id = ?", pipelineID, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &pipeline, nil
}

func (r *repositoryImpl) List(ctx context.Context, tenantID uuid.UUID) ([]models.Pipeline, error) {
	var pipelines []models.Pipeline
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&pipelines).Error
	return pipelines, err
}

func (r *repositoryImpl) GetStage(ctx context.Context, pipelineID, stageID uuid.UUID) (*models.PipelineStage, error) {
	var stage models.PipelineStage
	err := r.db.WithContext(ctx).
		First(&stage, "id = ? AND pipeline_id = ?", stageID, pipelineID).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}
