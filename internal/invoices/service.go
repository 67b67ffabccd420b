package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db"
	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox/payloads"
	"github.com/pipeflowhq/pipeflow-backend/pkg/pagination"
)

// Service exposes the invoice lifecycle: draft, issue, record payment.
type Service interface {
	CreateDraft(ctx context.Context, params CreateDraftParams) (*models.Invoice, error)
	Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Issue(ctx context.Context, params TransitionParams) (*models.Invoice, error)
	RecordPayment(ctx context.Context, params TransitionParams) (*models.Invoice, error)
	Void(ctx context.Context, params TransitionParams) (*models.Invoice, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventPublisher interface {
	Publish(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (int64, error)
}

type service struct {
	repo      Repository
	db        txRunner
	publisher eventPublisher
}

// ServiceParams wires invoice dependencies.
type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Publisher  eventPublisher
}

// NewService wires invoice dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoices repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event publisher required")
	}
	return &service{repo: params.Repository, db: params.DB, publisher: params.Publisher}, nil
}

// LineItemInput is a single billable row on a draft invoice.
type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CreateDraftParams carries a new draft invoice.
type CreateDraftParams struct {
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	ContactID *uuid.UUID
	Currency  string
	TaxRate   decimal.Decimal
	LineItems []LineItemInput
}

// ListParams configures invoice pagination with an optional status filter.
type ListParams struct {
	TenantID uuid.UUID
	Status   string
	Limit    int
	Cursor   string
}

// ListResult wraps returned invoices and the cursor for the next page.
type ListResult struct {
	Items  []models.Invoice `json:"items"`
	Cursor string           `json:"cursor"`
}

// TransitionParams identifies an invoice for a status transition.
type TransitionParams struct {
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	InvoiceID uuid.UUID
}

func (s *service) CreateDraft(ctx context.Context, params CreateDraftParams) (*models.Invoice, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if len(params.LineItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item required")
	}
	if params.TaxRate.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate cannot be negative")
	}

	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code")
	}

	subtotal := decimal.Zero
	items := make([]models.InvoiceLineItem, 0, len(params.LineItems))
	for i, item := range params.LineItems {
		description := strings.TrimSpace(item.Description)
		if description == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: description required", i+1))
		}
		if item.Quantity.IsNegative() || item.Quantity.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: quantity must be positive", i+1))
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: unit price cannot be negative", i+1))
		}
		amount := item.Quantity.Mul(item.UnitPrice).Round(2)
		subtotal = subtotal.Add(amount)
		items = append(items, models.InvoiceLineItem{
			Description: description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      amount,
		})
	}

	taxTotal := subtotal.Mul(params.TaxRate).Round(2)
	invoice := &models.Invoice{
		TenantID:  params.TenantID,
		ContactID: params.ContactID,
		Status:    enums.InvoiceStatusDraft,
		Currency:  currency,
		Subtotal:  subtotal,
		TaxTotal:  taxTotal,
		Total:     subtotal.Add(taxTotal),
		LineItems: items,
	}

	// Draft numbers are per tenant and sequential enough for display; the
	// uuid primary key is the real identity.
	count, err := s.repo.CountForTenant(ctx, params.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "number invoice")
	}
	invoice.Number = fmt.Sprintf("INV-%04d", count+1)

	if err := s.repo.Create(ctx, invoice); err != nil {
		if db.IsUniqueViolation(err, "uq_invoices_tenant_number") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice number already assigned, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	return invoice, nil
}

func (s *service) Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	if tenantID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and invoice ids required")
	}
	invoice, err := s.repo.GetByID(ctx, tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}

	query := listInvoicesParams{TenantID: params.TenantID, Limit: params.Limit}
	if params.Status != "" {
		status, err := enums.ParseInvoiceStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Issue moves a draft invoice to issued and records the event atomically
// with the status change.
func (s *service) Issue(ctx context.Context, params TransitionParams) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, params.TenantID, params.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.CanTransition(enums.InvoiceStatusIssued) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("invoice in status %q cannot be issued", invoice.Status))
	}

	now := time.Now().UTC()
	invoice.Status = enums.InvoiceStatusIssued
	invoice.IssuedAt = &now

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.UpdateStatus(tx, invoice); err != nil {
			return err
		}
		_, pubErr := s.publisher.Publish(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventInvoiceIssued,
			EntityType: enums.EntityInvoice,
			EntityID:   invoice.ID,
			Actor:      actorRef(params.ActorID, params.TenantID),
			Data: payloads.InvoiceIssued{
				InvoiceID: invoice.ID,
				TenantID:  invoice.TenantID,
				Number:    invoice.Number,
				Currency:  invoice.Currency,
				Total:     invoice.Total.StringFixed(2),
				ContactID: invoice.ContactID,
			},
		})
		return pubErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue invoice")
	}
	return invoice, nil
}

// RecordPayment marks an issued invoice paid and records the event
// atomically with the status change.
func (s *service) RecordPayment(ctx context.Context, params TransitionParams) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, params.TenantID, params.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.CanTransition(enums.InvoiceStatusPaid) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("invoice in status %q cannot be paid", invoice.Status))
	}

	now := time.Now().UTC()
	invoice.Status = enums.InvoiceStatusPaid
	invoice.PaidAt = &now

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.UpdateStatus(tx, invoice); err != nil {
			return err
		}
		_, pubErr := s.publisher.Publish(ctx, tx, outbox.DomainEvent{
			EventType:  enums.EventInvoicePaid,
			EntityType: enums.EntityInvoice,
			EntityID:   invoice.ID,
			Actor:      actorRef(params.ActorID, params.TenantID),
			Data: payloads.InvoicePaid{
				InvoiceID: invoice.ID,
				TenantID:  invoice.TenantID,
				Number:    invoice.Number,
				Total:     invoice.Total.StringFixed(2),
			},
		})
		return pubErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	return invoice, nil
}

// Void cancels a draft or issued invoice. No event is emitted; voiding is
// an administrative correction, not a business fact downstream cares about.
func (s *service) Void(ctx context.Context, params TransitionParams) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, params.TenantID, params.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.CanTransition(enums.InvoiceStatusVoid) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("invoice in status %q cannot be voided", invoice.Status))
	}

	invoice.Status = enums.InvoiceStatusVoid
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.UpdateStatus(tx, invoice)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void invoice")
	}
	return invoice, nil
}

func actorRef(userID, tenantID uuid.UUID) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, TenantID: tenantID}
}
