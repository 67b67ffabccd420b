package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

// DomainEvent is the publish-time description of a side effect to run.
type DomainEvent struct {
	EventType  enums.OutboxEventType
	EntityType enums.OutboxEntityType
	EntityID   uuid.UUID
	Actor      *ActorRef
	Data       any
	Version    int
	OccurredAt time.Time
}

// Service is the publisher half of the outbox. Publish must run inside the
// same transaction as the business mutation it reports on.
type Service struct {
	repo     *Repository
	notifier WakeNotifier
	logg     *logger.Logger
}

func NewService(repo *Repository, notifier WakeNotifier, logg *logger.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logg: logg}
}

// Publish inserts exactly one pending event row inside tx and returns its
// id. After the insert it fires a best-effort wake-up hint; a hint failure
// is logged and swallowed because the fallback poll will find the row
// regardless. Only the insert itself can fail the call.
func (s *Service) Publish(ctx context.Context, tx *gorm.DB, event DomainEvent) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !event.EventType.IsValid() {
		return 0, fmt.Errorf("unrecognized event type %q", event.EventType)
	}
	if !event.EntityType.IsValid() {
		return 0, fmt.Errorf("unrecognized entity type %q", event.EntityType)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return 0, fmt.Errorf("marshal event data: %w", err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Version <= 0 {
		event.Version = 1
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return 0, fmt.Errorf("marshal envelope: %w", err)
	}

	row := models.OutboxEvent{
		EventType:  event.EventType,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Payload:    payload,
		Status:     enums.OutboxStatusPending,
	}
	if err := s.repo.Insert(tx, &row); err != nil {
		return 0, err
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox wake-up hint failed")
		}
	}

	if s.logg != nil {
		fields := map[string]any{
			"outbox_id":   row.ID,
			"event_id":    envelope.EventID,
			"event_type":  event.EventType,
			"entity_type": event.EntityType,
			"entity_id":   event.EntityID.String(),
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event queued")
	}
	return row.ID, nil
}

// DecodeEnvelope unwraps the stored payload envelope from an event row.
func DecodeEnvelope(event models.OutboxEvent) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return envelope, nil
}
