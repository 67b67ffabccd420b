// Package dispatch binds outbox event types to their consumers. Handlers
// translate recorded domain facts into in-app notifications; adding a new
// consumer means registering another handler here.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pipeflowhq/pipeflow-backend/internal/notifications"
	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox/payloads"
)

type notificationCreator interface {
	Create(ctx context.Context, params notifications.CreateParams) (*models.Notification, error)
}

// Params wires the handler registry dependencies.
type Params struct {
	Notifications notificationCreator
	Logger        *logger.Logger
}

// NewRegistry builds the handler registry with every known event type bound.
func NewRegistry(params Params) (*outbox.HandlerRegistry, error) {
	if params.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}

	d := &dispatcher{notifications: params.Notifications}
	registry := outbox.NewHandlerRegistry(params.Logger)
	registry.Register(enums.EventContactCreated, d.contactCreated)
	registry.Register(enums.EventOpportunityCreated, d.opportunityCreated)
	registry.Register(enums.EventOpportunityStageChanged, d.opportunityStageChanged)
	registry.Register(enums.EventInvoiceIssued, d.invoiceIssued)
	registry.Register(enums.EventInvoicePaid, d.invoicePaid)
	return registry, nil
}

type dispatcher struct {
	notifications notificationCreator
}

func decodePayload[T any](event models.OutboxEvent) (T, error) {
	var payload T
	envelope, err := outbox.DecodeEnvelope(event)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	return payload, nil
}

func (d *dispatcher) contactCreated(ctx context.Context, event models.OutboxEvent) error {
	payload, err := decodePayload[payloads.ContactCreated](event)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("/contacts/%s", payload.ContactID)
	_, err = d.notifications.Create(ctx, notifications.CreateParams{
		TenantID: payload.TenantID,
		Kind:     enums.NotificationContactCreated,
		Title:    "New contact added",
		Message:  fmt.Sprintf("%s was added to your contacts", payload.Name),
		Link:     &link,
	})
	return err
}

func (d *dispatcher) opportunityCreated(ctx context.Context, event models.OutboxEvent) error {
	payload, err := decodePayload[payloads.OpportunityCreated](event)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("/pipelines/%s", payload.PipelineID)
	_, err = d.notifications.Create(ctx, notifications.CreateParams{
		TenantID: payload.TenantID,
		Kind:     enums.NotificationOpportunityCreated,
		Title:    "New opportunity",
		Message:  fmt.Sprintf("%q entered the pipeline", payload.Title),
		Link:     &link,
	})
	return err
}

func (d *dispatcher) opportunityStageChanged(ctx context.Context, event models.OutboxEvent) error {
	payload, err := decodePayload[payloads.OpportunityStageChanged](event)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("/pipelines/%s", payload.PipelineID)
	_, err = d.notifications.Create(ctx, notifications.CreateParams{
		TenantID: payload.TenantID,
		Kind:     enums.NotificationOpportunityMoved,
		Title:    "Opportunity moved",
		Message:  fmt.Sprintf("%q moved to a new stage", payload.Title),
		Link:     &link,
	})
	return err
}

func (d *dispatcher) invoiceIssued(ctx context.Context, event models.OutboxEvent) error {
	payload, err := decodePayload[payloads.InvoiceIssued](event)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("/invoices/%s", payload.InvoiceID)
	_, err = d.notifications.Create(ctx, notifications.CreateParams{
		TenantID: payload.TenantID,
		Kind:     enums.NotificationInvoiceIssued,
		Title:    "Invoice issued",
		Message:  fmt.Sprintf("Invoice %s for %s %s was issued", payload.Number, payload.Currency, payload.Total),
		Link:     &link,
	})
	return err
}

func (d *dispatcher) invoicePaid(ctx context.Context, event models.OutboxEvent) error {
	payload, err := decodePayload[payloads.InvoicePaid](event)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("/invoices/%s", payload.InvoiceID)
	_, err = d.notifications.Create(ctx, notifications.CreateParams{
		TenantID: payload.TenantID,
		Kind:     enums.NotificationInvoicePaid,
		Title:    "Invoice paid",
		Message:  fmt.Sprintf("Invoice %s was paid in full (%s)", payload.Number, payload.Total),
		Link:     &link,
	})
	return err
}
