package opportunities

import (
	"context"
	"testing"

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

type fakeRepository struct {
	createFn func(tx *gorm.DB, opportunity *models.Opportunity) error
	getFn    func(ctx context.Context, tenantID, opportunityID uuid.UUID) (*models.Opportunity, error)
	listFn   func(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]models.Opportunity, error)
	moveFn   func(tx *gorm.DB, tenantID, opportunityID, stageID uuid.UUID) (bool, error)
}

func (f *fakeRepository) Create(tx *gorm.DB, opportunity *models.Opportunity) error {
	if f.createFn != nil {
		return f.createFn(tx, opportunity)
	}
	opportunity.ID = uuid.New()
	return nil
}

func (f *fakeRepository) GetByID(ctx context.Context, tenantID, opportunityID uuid.UUID) (*models.Opportunity, error) {
	if f.getFn != nil {
		return f.getFn(ctx, tenantID, opportunityID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListByPipeline(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]models.Opportunity, error) {
	if f.listFn != nil {
		return f.listFn(ctx, tenantID, pipelineID)
	}
	return nil, nil
}

func (f *fakeRepository) MoveStage(tx *gorm.DB, tenantID, opportunityID, stageID uuid.UUID) (bool, error) {
	if f.moveFn != nil {
		return f.moveFn(tx, tenantID, opportunityID, stageID)
	}
	return true, nil
}

type fakePipelinesRepo struct {
	getFn      func(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error)
	getStageFn func(ctx context.Context, pipelineID, stageID uuid.UUID) (*models.PipelineStage, error)
}

func (f *fakePipelinesRepo) Create(ctx context.Context, pipeline *models.Pipeline) error {
	return nil
}

func (f *fakePipelinesRepo) GetByID(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error) {
	if f.getFn != nil {
		return f.getFn(ctx, tenantID, pipelineID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePipelinesRepo) List(ctx context.Context, tenantID uuid.UUID) ([]models.Pipeline, error) {
	return nil, nil
}

func (f *fakePipelinesRepo) GetStage(ctx context.Context, pipelineID, stageID uuid.UUID) (*models.PipelineStage, error) {
	if f.getStageFn != nil {
		return f.getStageFn(ctx, pipelineID, stageID)
	}
	return nil, gorm.ErrRecordNotFound
}

var _ pipelines.Repository = (*fakePipelinesRepo)(nil)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePublisher struct {
	events []outbox.DomainEvent
}

func (f *fakePublisher) Publish(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (int64, error) {
	f.events = append(f.events, event)
	return int64(len(f.events)), nil
}

func newService(t *testing.T, repo Repository, pipelinesRepo pipelines.Repository, publisher eventPublisher) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repository:    repo,
		PipelinesRepo: pipelinesRepo,
		DB:            fakeTxRunner{},
		Publisher:     publisher,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return svc
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code())
	}
}

func TestCreate_ValidatesStageMembership(t *testing.T) {
	tenantID := uuid.New()
	pipelineID := uuid.New()
	stageID := uuid.New()

	pipelinesRepo := &fakePipelinesRepo{
		getStageFn: func(ctx context.Context, gotPipeline, gotStage uuid.UUID) (*models.PipelineStage, error) {
			if gotPipeline != pipelineID || gotStage != stageID {
				return nil, gorm.ErrRecordNotFound
			}
			return &models.PipelineStage{ID: stageID, PipelineID: pipelineID, Name: "Qualified"}, nil
		},
	}
	publisher := &fakePublisher{}
	svc := newService(t, &fakeRepository{}, pipelinesRepo, publisher)

	created, err := svc.Create(context.Background(), CreateParams{
		TenantID:   tenantID,
		PipelineID: pipelineID,
		StageID:    stageID,
		Title:      "Acme renewal",
		Value:      decimal.NewFromInt(5000),
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created.StageID != stageID {
		t.Fatalf("expected stage %s, got %s", stageID, created.StageID)
	}
	if created.Status != enums.OpportunityStatusOpen {
		t.Fatalf("expected open status, got %s", created.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventOpportunityCreated {
		t.Fatalf("expected opportunity.created event, got %+v", publisher.events)
	}

	// A stage from a different pipeline is rejected before any write.
	_, err = svc.Create(context.Background(), CreateParams{
		TenantID:   tenantID,
		PipelineID: pipelineID,
		StageID:    uuid.New(),
		Title:      "Orphan card",
	})
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestCreate_Validation(t *testing.T) {
	svc := newService(t, &fakeRepository{}, &fakePipelinesRepo{}, &fakePublisher{})

	_, err := svc.Create(context.Background(), CreateParams{Title: "No tenant"})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), CreateParams{TenantID: uuid.New(), Title: "   "})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), CreateParams{
		TenantID: uuid.New(),
		Title:    "Negative",
		Value:    decimal.NewFromInt(-1),
	})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestMoveStage_PublishesStageChanged(t *testing.T) {
	tenantID := uuid.New()
	pipelineID := uuid.New()
	fromStageID := uuid.New()
	toStageID := uuid.New()
	opportunityID := uuid.New()

	repo := &fakeRepository{
		getFn: func(ctx context.Context, gotTenant, gotID uuid.UUID) (*models.Opportunity, error) {
			return &models.Opportunity{
				ID:         opportunityID,
				TenantID:   tenantID,
				PipelineID: pipelineID,
				StageID:    fromStageID,
				Title:      "Acme renewal",
			}, nil
		},
	}
	pipelinesRepo := &fakePipelinesRepo{
		getStageFn: func(ctx context.Context, gotPipeline, gotStage uuid.UUID) (*models.PipelineStage, error) {
			if gotPipeline != pipelineID || gotStage != toStageID {
				return nil, gorm.ErrRecordNotFound
			}
			return &models.PipelineStage{ID: toStageID, PipelineID: pipelineID}, nil
		},
	}
	publisher := &fakePublisher{}
	svc := newService(t, repo, pipelinesRepo, publisher)

	moved, err := svc.MoveStage(context.Background(), MoveStageParams{
		TenantID:      tenantID,
		OpportunityID: opportunityID,
		ToStageID:     toStageID,
	})
	if err != nil {
		t.Fatalf("unexpected move error: %v", err)
	}
	if moved.StageID != toStageID {
		t.Fatalf("expected stage %s, got %s", toStageID, moved.StageID)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.events))
	}
	data, ok := publisher.events[0].Data.(payloads.OpportunityStageChanged)
	if !ok {
		t.Fatalf("unexpected payload type %T", publisher.events[0].Data)
	}
	if data.FromStageID != fromStageID || data.ToStageID != toStageID {
		t.Fatalf("unexpected stage transition %+v", data)
	}
}

func TestMoveStage_SameStageIsNoop(t *testing.T) {
	tenantID := uuid.New()
	stageID := uuid.New()
	opportunityID := uuid.New()

	repo := &fakeRepository{
		getFn: func(ctx context.Context, gotTenant, gotID uuid.UUID) (*models.Opportunity, error) {
			return &models.Opportunity{ID: opportunityID, TenantID: tenantID, StageID: stageID}, nil
		},
	}
	publisher := &fakePublisher{}
	svc := newService(t, repo, &fakePipelinesRepo{}, publisher)

	moved, err := svc.MoveStage(context.Background(), MoveStageParams{
		TenantID:      tenantID,
		OpportunityID: opportunityID,
		ToStageID:     stageID,
	})
	if err != nil {
		t.Fatalf("unexpected move error: %v", err)
	}
	if moved.StageID != stageID {
		t.Fatalf("unexpected stage %s", moved.StageID)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no event for same-stage move, got %+v", publisher.events)
	}
}

func TestMoveStage_CrossPipelineConflict(t *testing.T) {
	tenantID := uuid.New()
	opportunityID := uuid.New()

	repo := &fakeRepository{
		getFn: func(ctx context.Context, gotTenant, gotID uuid.UUID) (*models.Opportunity, error) {
			return &models.Opportunity{
				ID:         opportunityID,
				TenantID:   tenantID,
				PipelineID: uuid.New(),
				StageID:    uuid.New(),
			}, nil
		},
	}
	svc := newService(t, repo, &fakePipelinesRepo{}, &fakePublisher{})

	_, err := svc.MoveStage(context.Background(), MoveStageParams{
		TenantID:      tenantID,
		OpportunityID: opportunityID,
		ToStageID:     uuid.New(),
	})
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestMoveStage_NotFound(t *testing.T) {
	svc := newService(t, &fakeRepository{}, &fakePipelinesRepo{}, &fakePublisher{})

	_, err := svc.MoveStage(context.Background(), MoveStageParams{
		TenantID:      uuid.New(),
		OpportunityID: uuid.New(),
		ToStageID:     uuid.New(),
	})
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestBoard_GroupsByStage(t *testing.T) {
	tenantID := uuid.New()
	pipelineID := uuid.New()
	stageA := models.PipelineStage{ID: uuid.New(), PipelineID: pipelineID, Name: "New", Position: 1}
	stageB := models.PipelineStage{ID: uuid.New(), PipelineID: pipelineID, Name: "Won", Position: 2}

	cardOne := models.Opportunity{ID: uuid.New(), TenantID: tenantID, PipelineID: pipelineID, StageID: stageA.ID}
	cardTwo := models.Opportunity{ID: uuid.New(), TenantID: tenantID, PipelineID: pipelineID, StageID: stageA.ID}
	cardThree := models.Opportunity{ID: uuid.New(), TenantID: tenantID, PipelineID: pipelineID, StageID: stageB.ID}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, gotTenant, gotPipeline uuid.UUID) ([]models.Opportunity, error) {
			return []models.Opportunity{cardOne, cardTwo, cardThree}, nil
		},
	}
	pipelinesRepo := &fakePipelinesRepo{
		getFn: func(ctx context.Context, gotTenant, gotPipeline uuid.UUID) (*models.Pipeline, error) {
			return &models.Pipeline{
				ID:       pipelineID,
				TenantID: tenantID,
				Name:     "Sales",
				Stages:   []models.PipelineStage{stageA, stageB},
			}, nil
		},
	}
	svc := newService(t, repo, pipelinesRepo, &fakePublisher{})

	board, err := svc.Board(context.Background(), tenantID, pipelineID)
	if err != nil {
		t.Fatalf("unexpected board error: %v", err)
	}
	if len(board.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(board.Columns))
	}
	if len(board.Columns[0].Opportunities) != 2 {
		t.Fatalf("expected 2 cards in first column, got %d", len(board.Columns[0].Opportunities))
	}
	if len(board.Columns[1].Opportunities) != 1 {
		t.Fatalf("expected 1 card in second column, got %d", len(board.Columns[1].Opportunities))
	}
	if board.Columns[1].Opportunities[0].ID != cardThree.ID {
		t.Fatalf("unexpected card in second column")
	}
}
