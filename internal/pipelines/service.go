package pipelines

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
)

// Service defines pipeline and stage operations.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Pipeline, error)
	Get(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]models.Pipeline, error)
}

type service struct {
	repo Repository
}

// NewService wires pipeline dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pipelines repository required")
	}
	return &service{repo: repo}, nil
}

// CreateParams carries a new pipeline with its ordered stage names.
type CreateParams struct {
	TenantID uuid.UUID
	Name     string
	Stages   []string
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Pipeline, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pipeline name required")
	}
	if len(params.Stages) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one stage required")
	}

	pipeline := &models.Pipeline{
		TenantID: params.TenantID,
		Name:     name,
	}
	for i, stageName := range params.Stages {
		stageName = strings.TrimSpace(stageName)
		if stageName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stage names cannot be empty")
		}
		pipeline.Stages = append(pipeline.Stages, models.PipelineStage{
			Name:     stageName,
			Position: i,
		})
	}

	if err := s.repo.Create(ctx, pipeline); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pipeline")
	}
	return pipeline, nil
}

func (s *service) Get(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error) {
	if tenantID == uuid.Nil || pipelineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and pipeline ids required")
	}
	pipeline, err := s.repo.GetByID(ctx, tenantID, pipelineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pipeline not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pipeline")
	}
	return pipeline, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID) ([]models.Pipeline, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	pipelines, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pipelines")
	}
	return pipelines, nil
}
