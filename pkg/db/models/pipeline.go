package models

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline is a sales pipeline owning an ordered set of stages.
type Pipeline struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name;not null"`
	Stages    []PipelineStage `gorm:"foreignKey:PipelineID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// PipelineStage is a kanban column within a pipeline.
type PipelineStage struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PipelineID uuid.UUID `gorm:"column:pipeline_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	Position   int       `gorm:"column:position;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
