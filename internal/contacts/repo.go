package contacts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/pagination"
)

// Repository exposes persistence helpers for contacts.
type Repository interface {
	Create(tx *gorm.DB, contact *models.Contact) error
	GetByID(ctx context.Context, tenantID, contactID uuid.UUID) (*models.Contact, error)
	List(ctx context.Context, params listContactsParams) ([]models.Contact, *pagination.Cursor, error)
	Update(ctx context.Context, contact *models.Contact) error
	Delete(ctx context.Context, tenantID, contactID uuid.UUID) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a contacts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listContactsParams struct {
	TenantID uuid.UUID
	Limit    int
	Cursor   *pagination.Cursor
	Search   string
}

func (r *repositoryImpl) Create(tx *gorm.DB, contact *models.Contact) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(contact).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, tenantID, contactID uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).
		First(&contact, "id = ? AND tenant_id = ?", contactID, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listContactsParams) ([]models.Contact, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Contact{}).Where("tenant_id = ?", params.TenantID)
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR company LIKE ?", pattern, pattern, pattern)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var contacts []models.Contact
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&contacts).Error; err != nil {
		return nil, nil, err
	}

	if len(contacts) > normalized {
		next := contacts[normalized]
		contacts = contacts[:normalized]
		return contacts, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return contacts, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, contact *models.Contact) error {
	return r.db.WithContext(ctx).Save(contact).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, tenantID, contactID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", contactID, tenantID).
		Delete(&models.Contact{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
