package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a CRM contact scoped to a tenant.
type Contact struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Email     *string   `gorm:"column:email"`
	Phone     *string   `gorm:"column:phone"`
	Company   *string   `gorm:"column:company"`
	Tags      *string   `gorm:"column:tags"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
