package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
)

// Invoice is a tenant-issued invoice with decimal money columns.
type Invoice struct {
	ID        uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	ContactID *uuid.UUID          `gorm:"column:contact_id;type:uuid"`
	Number    string              `gorm:"column:number;not null"`
	Status    enums.InvoiceStatus `gorm:"column:status;not null;default:'draft'"`
	Currency  string              `gorm:"column:currency;not null;default:'USD'"`
	Subtotal  decimal.Decimal     `gorm:"column:subtotal;type:numeric(14,2);not null;default:0"`
	TaxTotal  decimal.Decimal     `gorm:"column:tax_total;type:numeric(14,2);not null;default:0"`
	Total     decimal.Decimal     `gorm:"column:total;type:numeric(14,2);not null;default:0"`
	LineItems []InvoiceLineItem   `gorm:"foreignKey:InvoiceID"`
	IssuedAt  *time.Time          `gorm:"column:issued_at"`
	PaidAt    *time.Time          `gorm:"column:paid_at"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// InvoiceLineItem is a single billable row on an invoice.
type InvoiceLineItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID   uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	Description string          `gorm:"column:description;not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null;default:0"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
