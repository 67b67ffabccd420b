package pipelines

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
)

type fakeRepository struct {
	createFn func(ctx context.Context, pipeline *models.Pipeline) error
	getFn    func(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error)
	listFn   func(ctx context.Context, tenantID uuid.UUID) ([]models.Pipeline, error)
}

func (f *fakeRepository) Create(ctx context.Context, pipeline *models.Pipeline) error {
	if f.createFn != nil {
		return f.createFn(ctx, pipeline)
	}
	pipeline.ID = uuid.New()
	return nil
}

func (f *fakeRepository) GetByID(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error) {
	if f.getFn != nil {
		return f.getFn(ctx, tenantID, pipelineID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) List(ctx context.Context, tenantID uuid.UUID) ([]models.Pipeline, error) {
	if f.listFn != nil {
		return f.listFn(ctx, tenantID)
	}
	return nil, nil
}

func (f *fakeRepository) GetStage(ctx context.Context, pipelineID, stageID uuid.UUID) (*models.PipelineStage, error) {
	return nil, gorm.ErrRecordNotFound
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
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

func TestCreate_OrdersStagesByPosition(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	pipeline, err := svc.Create(context.Background(), CreateParams{
		TenantID: uuid.New(),
		Name:     " Sales ",
		Stages:   []string{"New", " Qualified ", "Won"},
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if pipeline.Name != "Sales" {
		t.Fatalf("expected trimmed name, got %q", pipeline.Name)
	}
	if len(pipeline.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(pipeline.Stages))
	}
	for i, stage := range pipeline.Stages {
		if stage.Position != i {
			t.Fatalf("stage %d has position %d", i, stage.Position)
		}
	}
	if pipeline.Stages[1].Name != "Qualified" {
		t.Fatalf("expected trimmed stage name, got %q", pipeline.Stages[1].Name)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.Create(context.Background(), CreateParams{Name: "No tenant", Stages: []string{"New"}})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), CreateParams{TenantID: uuid.New(), Name: "  ", Stages: []string{"New"}})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), CreateParams{TenantID: uuid.New(), Name: "Sales"})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), CreateParams{TenantID: uuid.New(), Name: "Sales", Stages: []string{"New", "  "}})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestGet_NotFound(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.Get(context.Background(), uuid.Nil, uuid.New())
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestList(t *testing.T) {
	tenantID := uuid.New()
	repo := &fakeRepository{
		listFn: func(ctx context.Context, gotTenant uuid.UUID) ([]models.Pipeline, error) {
			if gotTenant != tenantID {
				t.Fatalf("unexpected tenant %s", gotTenant)
			}
			return []models.Pipeline{{ID: uuid.New()}, {ID: uuid.New()}}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	pipelines, err := svc.List(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(pipelines) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(pipelines))
	}
}
