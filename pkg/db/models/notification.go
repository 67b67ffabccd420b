package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to tenants.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index"`
	Kind      enums.NotificationKind `gorm:"column:kind;not null"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	Link      *string                `gorm:"column:link"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
