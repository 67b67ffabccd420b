package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	"github.com/pipeflowhq/pipeflow-backend/api/validators"
	"github.com/pipeflowhq/pipeflow-backend/internal/invoices"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/pagination"
)

type invoiceLineItemRequest struct {
	Description string `json:"description" validate:"required,min=1,max=500"`
	Quantity    string `json:"quantity" validate:"required"`
	UnitPrice   string `json:"unitPrice" validate:"required"`
}

type createInvoiceRequest struct {
	ContactID *string                  `json:"contactId,omitempty" validate:"omitempty,uuid4"`
	Currency  string                   `json:"currency,omitempty" validate:"omitempty,len=3"`
	TaxRate   string                   `json:"taxRate,omitempty"`
	LineItems []invoiceLineItemRequest `json:"lineItems" validate:"required,min=1,max=100,dive"`
}

// CreateInvoice creates a draft invoice with computed decimal totals.
func CreateInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createInvoiceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var contactID *uuid.UUID
		if body.ContactID != nil {
			parsed, err := pathUUID(*body.ContactID, "contact id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			contactID = &parsed
		}

		taxRate := decimal.Zero
		if body.TaxRate != "" {
			parsed, err := decimal.NewFromString(body.TaxRate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tax rate"))
				return
			}
			taxRate = parsed
		}

		items := make([]invoices.LineItemInput, 0, len(body.LineItems))
		for _, item := range body.LineItems {
			quantity, err := decimal.NewFromString(item.Quantity)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quantity"))
				return
			}
			unitPrice, err := decimal.NewFromString(item.UnitPrice)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit price"))
				return
			}
			items = append(items, invoices.LineItemInput{
				Description: item.Description,
				Quantity:    quantity,
				UnitPrice:   unitPrice,
			})
		}

		invoice, err := svc.CreateDraft(r.Context(), invoices.CreateDraftParams{
			TenantID:  tenantID,
			ActorID:   actorFromContext(r.Context()),
			ContactID: contactID,
			Currency:  body.Currency,
			TaxRate:   taxRate,
			LineItems: items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, invoice)
	}
}

func GetInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(chi.URLParam(r, "invoiceId"), "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Get(r.Context(), tenantID, invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

func ListInvoices(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), invoices.ListParams{
			TenantID: tenantID,
			Status:   strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:    limit,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func invoiceTransition(logg *logger.Logger, run func(r *http.Request, params invoices.TransitionParams) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(chi.URLParam(r, "invoiceId"), "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := run(r, invoices.TransitionParams{
			TenantID:  tenantID,
			ActorID:   actorFromContext(r.Context()),
			InvoiceID: invoiceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// IssueInvoice transitions a draft to issued and records the event.
func IssueInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return invoiceTransition(logg, func(r *http.Request, params invoices.TransitionParams) (any, error) {
		return svc.Issue(r.Context(), params)
	})
}

// PayInvoice records a payment against an issued invoice.
func PayInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return invoiceTransition(logg, func(r *http.Request, params invoices.TransitionParams) (any, error) {
		return svc.RecordPayment(r.Context(), params)
	})
}

// VoidInvoice cancels a draft or issued invoice.
func VoidInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return invoiceTransition(logg, func(r *http.Request, params invoices.TransitionParams) (any, error) {
		return svc.Void(r.Context(), params)
	})
}
