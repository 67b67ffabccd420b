package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
)

// Opportunity is a deal card on the pipeline board.
type Opportunity struct {
	ID         uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID   uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index"`
	PipelineID uuid.UUID               `gorm:"column:pipeline_id;type:uuid;not null;index"`
	StageID    uuid.UUID               `gorm:"column:stage_id;type:uuid;not null;index"`
	ContactID  *uuid.UUID              `gorm:"column:contact_id;type:uuid"`
	Title      string                  `gorm:"column:title;not null"`
	Value      decimal.Decimal         `gorm:"column:value;type:numeric(14,2);not null;default:0"`
	Status     enums.OpportunityStatus `gorm:"column:status;not null;default:'open'"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
