package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a customer workspace. Agencies own tenants via ParentAgencyID
// for white-label setups; the column is nullable for direct accounts.
type Tenant struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string     `gorm:"column:name;not null"`
	Slug           string     `gorm:"column:slug;not null;uniqueIndex"`
	ParentAgencyID *uuid.UUID `gorm:"column:parent_agency_id;type:uuid"`
	Plan           string     `gorm:"column:plan;not null;default:'free'"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
