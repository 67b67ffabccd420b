package contacts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox/payloads"
	"github.com/pipeflowhq/pipeflow-backend/pkg/pagination"
)

// Service defines contact CRUD operations.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Contact, error)
	Get(ctx context.Context, tenantID, contactID uuid.UUID) (*models.Contact, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, params UpdateParams) (*models.Contact, error)
	Delete(ctx context.Context, tenantID, contactID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventPublisher interface {
	Publish(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (int64, error)
}

type service struct {
	repo      Repository
	db        txRunner
	publisher eventPublisher
}

// ServiceParams wires contact dependencies.
type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Publisher  eventPublisher
}

// NewService wires contact dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "contacts repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event publisher required")
	}
	return &service{repo: params.Repository, db: params.DB, publisher: params.Publisher}, nil
}

// CreateParams carries a new contact.
type CreateParams struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
	Name     string
	Email    *string
	Phone    *string
	Company  *string
	Tags     *string
}

// ListParams configures pagination for contacts.
type ListParams struct {
	TenantID uuid.UUID
	Limit    int
	Cursor   string
	Search   string
}

// ListResult wraps returned contacts and the cursor for the next page.
type ListResult struct {
	Items  []models.Contact `json:"items"`
	Cursor string           `json:"cursor"`
}

// UpdateParams carries a partial contact update.
type UpdateParams struct {
	TenantID  uuid.UUID
	ContactID uuid.UUID
	Name      *string
	Email     *string
	Phone     *string
	Company   *string
	Tags      *string
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Contact, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact name required")
	}

	contact := &models.Contact{
		TenantID: params.TenantID,
		Name:     name,
		Email:    params.Email,
		Phone:    params.Phone,
		Company:  params.Company,
		Tags:     params.Tags,
	}

	// Insert and publish inside one transaction: a rolled-back create must
	// never leave an orphan event behind.
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Create(tx, contact); err != nil {
			return err
		}
		_, pubErr := s.publisher.Publish(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventContactCreated,
			EntityType: enums.EntityContact,
			EntityID:   contact.ID,
			Actor:      actorRef(params.ActorID, params.TenantID),
			Data: payloads.ContactCreated{
				ContactID: contact.ID,
				TenantID:  contact.TenantID,
				Name:      contact.Name,
				Email:     contact.Email,
			},
		})
		return pubErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contact")
	}
	return contact, nil
}

func (s *service) Get(ctx context.Context, tenantID, contactID uuid.UUID) (*models.Contact, error) {
	if tenantID == uuid.Nil || contactID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and contact ids required")
	}
	contact, err := s.repo.GetByID(ctx, tenantID, contactID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contact")
	}
	return contact, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}

	query := listContactsParams{
		TenantID: params.TenantID,
		Limit:    params.Limit,
		Search:   strings.TrimSpace(params.Search),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contacts")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, params UpdateParams) (*models.Contact, error) {
	contact, err := s.Get(ctx, params.TenantID, params.ContactID)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact name cannot be empty")
		}
		contact.Name = name
	}
	if params.Email != nil {
		contact.Email = params.Email
	}
	if params.Phone != nil {
		contact.Phone = params.Phone
	}
	if params.Company != nil {
		contact.Company = params.Company
	}
	if params.Tags != nil {
		contact.Tags = params.Tags
	}

	if err := s.repo.Update(ctx, contact); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update contact")
	}
	return contact, nil
}

func (s *service) Delete(ctx context.Context, tenantID, contactID uuid.UUID) error {
	if tenantID == uuid.Nil || contactID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant and contact ids required")
	}
	deleted, err := s.repo.Delete(ctx, tenantID, contactID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete contact")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
	}
	return nil
}

func actorRef(userID, tenantID uuid.UUID) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, TenantID: tenantID}
}
