package outbox

import (
	"context"
	"sync"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

// Handler consumes one claimed event. Delivery is at-least-once: a crash
// between the handler running and completion being recorded redelivers the
// event, so handlers should be idempotent where feasible.
type Handler func(ctx context.Context, event models.OutboxEvent) error

// HandlerRegistry maps each event type to exactly one handler. Unknown
// types resolve to a default handler that warns and succeeds, so a type
// mismatch degrades to a logged drop instead of crashing the batch.
type HandlerRegistry struct {
	mtx      sync.RWMutex
	handlers map[enums.OutboxEventType]Handler
	fallback Handler
}

func NewHandlerRegistry(logg *logger.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[enums.OutboxEventType]Handler),
		fallback: func(ctx context.Context, event models.OutboxEvent) error {
			if logg != nil {
				fields := map[string]any{
					"outbox_id":  event.ID,
					"event_type": event.EventType,
				}
				logg.Warn(logg.WithFields(ctx, fields), "no handler registered, dropping event")
			}
			return nil
		},
	}
}

// Register binds a handler to an event type, replacing any prior binding.
func (r *HandlerRegistry) Register(eventType enums.OutboxEventType, handler Handler) {
	if handler == nil {
		return
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.handlers[eventType] = handler
}

// Resolve returns the handler for the event type and whether it was
// explicitly registered. Unregistered types get the warn-and-drop fallback.
func (r *HandlerRegistry) Resolve(eventType enums.OutboxEventType) (Handler, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if handler, ok := r.handlers[eventType]; ok {
		return handler, true
	}
	return r.fallback, false
}
