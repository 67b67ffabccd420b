package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pipeflowhq/pipeflow-backend/internal/notifications"
	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox/payloads"
)

type fakeNotifications struct {
	created []notifications.CreateParams
	err     error
}

func (f *fakeNotifications) Create(ctx context.Context, params notifications.CreateParams) (*models.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, params)
	return &models.Notification{ID: uuid.New(), TenantID: params.TenantID, Kind: params.Kind}, nil
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "dispatch-test", Output: io.Discard})
}

func wrapPayload(t *testing.T, eventType enums.OutboxEventType, data any) models.OutboxEvent {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:        1,
		EventType: eventType,
		Payload:   envelope,
	}
}

func TestRegistry_BindsAllEventTypes(t *testing.T) {
	registry, err := NewRegistry(Params{Notifications: &fakeNotifications{}, Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	for _, eventType := range []enums.OutboxEventType{
		enums.EventContactCreated,
		enums.EventOpportunityCreated,
		enums.EventOpportunityStageChanged,
		enums.EventInvoiceIssued,
		enums.EventInvoicePaid,
	} {
		if _, known := registry.Resolve(eventType); !known {
			t.Fatalf("expected handler for %s", eventType)
		}
	}
}

func TestNewRegistry_RequiresNotifications(t *testing.T) {
	if _, err := NewRegistry(Params{Logger: newTestLogger()}); err == nil {
		t.Fatal("expected constructor error")
	}
}

func TestContactCreated_CreatesNotification(t *testing.T) {
	sink := &fakeNotifications{}
	registry, err := NewRegistry(Params{Notifications: sink, Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	tenantID := uuid.New()
	contactID := uuid.New()
	event := wrapPayload(t, enums.EventContactCreated, payloads.ContactCreated{
		ContactID: contactID,
		TenantID:  tenantID,
		Name:      "Grace Hopper",
	})

	handler, _ := registry.Resolve(enums.EventContactCreated)
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if len(sink.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sink.created))
	}
	created := sink.created[0]
	if created.TenantID != tenantID {
		t.Fatalf("unexpected tenant %s", created.TenantID)
	}
	if created.Kind != enums.NotificationContactCreated {
		t.Fatalf("unexpected kind %s", created.Kind)
	}
	if !strings.Contains(created.Message, "Grace Hopper") {
		t.Fatalf("unexpected message %q", created.Message)
	}
	if created.Link == nil || !strings.Contains(*created.Link, contactID.String()) {
		t.Fatalf("unexpected link %v", created.Link)
	}
}

func TestInvoiceHandlers_FormatAmounts(t *testing.T) {
	sink := &fakeNotifications{}
	registry, err := NewRegistry(Params{Notifications: sink, Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	tenantID := uuid.New()
	invoiceID := uuid.New()

	issued := wrapPayload(t, enums.EventInvoiceIssued, payloads.InvoiceIssued{
		InvoiceID: invoiceID,
		TenantID:  tenantID,
		Number:    "INV-0042",
		Currency:  "EUR",
		Total:     "199.99",
	})
	handler, _ := registry.Resolve(enums.EventInvoiceIssued)
	if err := handler(context.Background(), issued); err != nil {
		t.Fatalf("unexpected issued handler error: %v", err)
	}

	paid := wrapPayload(t, enums.EventInvoicePaid, payloads.InvoicePaid{
		InvoiceID: invoiceID,
		TenantID:  tenantID,
		Number:    "INV-0042",
		Total:     "199.99",
	})
	handler, _ = registry.Resolve(enums.EventInvoicePaid)
	if err := handler(context.Background(), paid); err != nil {
		t.Fatalf("unexpected paid handler error: %v", err)
	}

	if len(sink.created) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sink.created))
	}
	if !strings.Contains(sink.created[0].Message, "INV-0042") || !strings.Contains(sink.created[0].Message, "EUR 199.99") {
		t.Fatalf("unexpected issued message %q", sink.created[0].Message)
	}
	if sink.created[1].Kind != enums.NotificationInvoicePaid {
		t.Fatalf("unexpected kind %s", sink.created[1].Kind)
	}
}

func TestHandler_MalformedPayloadFails(t *testing.T) {
	registry, err := NewRegistry(Params{Notifications: &fakeNotifications{}, Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	handler, _ := registry.Resolve(enums.EventContactCreated)
	err = handler(context.Background(), models.OutboxEvent{
		ID:        2,
		EventType: enums.EventContactCreated,
		Payload:   []byte("{broken"),
	})
	if err == nil {
		t.Fatal("expected decode error to surface for retry")
	}
}

func TestHandler_NotificationFailurePropagates(t *testing.T) {
	sink := &fakeNotifications{err: context.DeadlineExceeded}
	registry, err := NewRegistry(Params{Notifications: sink, Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	event := wrapPayload(t, enums.EventOpportunityStageChanged, payloads.OpportunityStageChanged{
		OpportunityID: uuid.New(),
		TenantID:      uuid.New(),
		PipelineID:    uuid.New(),
		Title:         "Acme renewal",
	})
	handler, _ := registry.Resolve(enums.EventOpportunityStageChanged)
	if err := handler(context.Background(), event); err == nil {
		t.Fatal("expected creation failure to surface for retry")
	}
}
