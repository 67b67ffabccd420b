package opportunities

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/internal/pipelines"
	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox/payloads"
)

// Service defines deal card operations on the pipeline board.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Opportunity, error)
	MoveStage(ctx context.Context, params MoveStageParams) (*models.Opportunity, error)
	Board(ctx context.Context, tenantID, pipelineID uuid.UUID) (*BoardResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventPublisher interface {
	Publish(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (int64, error)
}

type service struct {
	repo      Repository
	pipelines pipelines.Repository
	db        txRunner
	publisher eventPublisher
}

// ServiceParams wires opportunity dependencies.
type ServiceParams struct {
	Repository    Repository
	PipelinesRepo pipelines.Repository
	DB            txRunner
	Publisher     eventPublisher
}

// NewService wires opportunity dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "opportunities repository required")
	}
	if params.PipelinesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pipelines repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event publisher required")
	}
	return &service{
		repo:      params.Repository,
		pipelines: params.PipelinesRepo,
		db:        params.DB,
		publisher: params.Publisher,
	}, nil
}

// CreateParams carries a new deal card.
type CreateParams struct {
	TenantID   uuid.UUID
	ActorID    uuid.UUID
	PipelineID uuid.UUID
	StageID    uuid.UUID
	ContactID  *uuid.UUID
	Title      string
	Value      decimal.Decimal
}

// MoveStageParams carries a kanban card move.
type MoveStageParams struct {
	TenantID      uuid.UUID
	ActorID       uuid.UUID
	OpportunityID uuid.UUID
	ToStageID     uuid.UUID
}

// BoardColumn is one kanban column with its cards.
type BoardColumn struct {
	Stage         models.PipelineStage `json:"stage"`
	Opportunities []models.Opportunity `json:"opportunities"`
}

// BoardResult groups a pipeline's opportunities by stage.
type BoardResult struct {
	Pipeline models.Pipeline `json:"pipeline"`
	Columns  []BoardColumn   `json:"columns"`
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Opportunity, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "opportunity title required")
	}
	if params.Value.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "opportunity value cannot be negative")
	}

	stage, err := s.pipelines.GetStage(ctx, params.PipelineID, params.StageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stage not found in pipeline")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stage")
	}

	opportunity := &models.Opportunity{
		TenantID:   params.TenantID,
		PipelineID: params.PipelineID,
		StageID:    stage.ID,
		ContactID:  params.ContactID,
		Title:      title,
		Value:      params.Value,
		Status:     enums.OpportunityStatusOpen,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Create(tx, opportunity); err != nil {
			return err
		}
		_, pubErr := s.publisher.Publish(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventOpportunityCreated,
			EntityType: enums.EntityOpportunity,
			EntityID:   opportunity.ID,
			Actor:      actorRef(params.ActorID, params.TenantID),
			Data: payloads.OpportunityCreated{
				OpportunityID: opportunity.ID,
				TenantID:      opportunity.TenantID,
				PipelineID:    opportunity.PipelineID,
				StageID:       opportunity.StageID,
				Title:         opportunity.Title,
				Value:         opportunity.Value.String(),
			},
		})
		return pubErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create opportunity")
	}
	return opportunity, nil
}

func (s *service) MoveStage(ctx context.Context, params MoveStageParams) (*models.Opportunity, error) {
	if params.TenantID == uuid.Nil || params.OpportunityID == uuid.Nil || params.ToStageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant, opportunity and stage ids required")
	}

	opportunity, err := s.repo.GetByID(ctx, params.TenantID, params.OpportunityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "opportunity not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load opportunity")
	}
	if opportunity.StageID == params.ToStageID {
		return opportunity, nil
	}

	stage, err := s.pipelines.GetStage(ctx, opportunity.PipelineID, params.ToStageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "target stage is not part of the opportunity's pipeline")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stage")
	}

	fromStageID := opportunity.StageID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, moveErr := s.repo.MoveStage(tx, params.TenantID, opportunity.ID, stage.ID)
		if moveErr != nil {
			return moveErr
		}
		if !moved {
			return gorm.ErrRecordNotFound
		}
		_, pubErr := s.publisher.Publish(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventOpportunityStageChanged,
			EntityType: enums.EntityOpportunity,
			EntityID:   opportunity.ID,
			Actor:      actorRef(params.ActorID, params.TenantID),
			Data: payloads.OpportunityStageChanged{
				OpportunityID: opportunity.ID,
				TenantID:      opportunity.TenantID,
				PipelineID:    opportunity.PipelineID,
				FromStageID:   fromStageID,
				ToStageID:     stage.ID,
				Title:         opportunity.Title,
			},
		})
		return pubErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move opportunity stage")
	}

	opportunity.StageID = stage.ID
	return opportunity, nil
}

func (s *service) Board(ctx context.Context, tenantID, pipelineID uuid.UUID) (*BoardResult, error) {
	if tenantID == uuid.Nil || pipelineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and pipeline ids required")
	}

	pipeline, err := s.pipelines.GetByID(ctx, tenantID, pipelineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pipeline not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pipeline")
	}

	opportunities, err := s.repo.ListByPipeline(ctx, tenantID, pipelineID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list opportunities")
	}

	byStage := make(map[uuid.UUID][]models.Opportunity, len(pipeline.Stages))
	for _, opportunity := range opportunities {
		byStage[opportunity.StageID] = append(byStage[opportunity.StageID], opportunity)
	}

	result := &BoardResult{Pipeline: *pipeline}
	for _, stage := range pipeline.Stages {
		result.Columns = append(result.Columns, BoardColumn{
			Stage:         stage,
			Opportunities: byStage[stage.ID],
		})
	}
	return result, nil
}

func actorRef(userID, tenantID uuid.UUID) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, TenantID: tenantID}
}
