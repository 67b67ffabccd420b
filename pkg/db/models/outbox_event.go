package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
)

// OutboxEvent is the durable record of a pending side effect. Rows are
// inserted in the same transaction as the business write and advance only
// forward: pending -> processing -> completed/failed, with a
// processing -> pending hop on retry.
type OutboxEvent struct {
	ID           int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	EventType    enums.OutboxEventType  `gorm:"column:event_type;not null;index:idx_outbox_events_status_created"`
	EntityType   enums.OutboxEntityType `gorm:"column:entity_type;not null"`
	EntityID     uuid.UUID              `gorm:"column:entity_id;type:uuid;not null"`
	Payload      json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	Status       enums.OutboxStatus     `gorm:"column:status;not null;default:'pending'"`
	RetryCount   int                    `gorm:"column:retry_count;not null;default:0"`
	ErrorMessage *string                `gorm:"column:error_message"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	ClaimedAt    *time.Time             `gorm:"column:claimed_at"`
	ProcessedAt  *time.Time             `gorm:"column:processed_at"`
}
