package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	"github.com/pipeflowhq/pipeflow-backend/pkg/pagination"
)

// Repository exposes persistence helpers for invoices.
type Repository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, params listInvoicesParams) ([]models.Invoice, *pagination.Cursor, error)
	UpdateStatus(tx *gorm.DB, invoice *models.Invoice) error
	CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an invoices repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listInvoicesParams struct {
	TenantID uuid.UUID
	Status   enums.InvoiceStatus
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repositoryImpl) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		First(&invoice, "id = ? AND tenant_id = ?", invoiceID, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listInvoicesParams) ([]models.Invoice, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("tenant_id = ?", params.TenantID)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var invoices []models.Invoice
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&invoices).Error; err != nil {
		return nil, nil, err
	}

	if len(invoices) > normalized {
		next := invoices[normalized]
		invoices = invoices[:normalized]
		return invoices, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return invoices, nil, nil
}

func (r *repositoryImpl) UpdateStatus(tx *gorm.DB, invoice *models.Invoice) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"status":    invoice.Status,
			"issued_at": invoice.IssuedAt,
			"paid_at":   invoice.PaidAt,
		}).Error
}

func (r *repositoryImpl) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}
