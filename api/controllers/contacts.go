package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	"github.com/pipeflowhq/pipeflow-backend/api/validators"
	"github.com/pipeflowhq/pipeflow-backend/internal/contacts"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/pagination"
)

type createContactRequest struct {
	Name    string  `json:"name" validate:"required,min=1,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Company *string `json:"company,omitempty" validate:"omitempty,max=200"`
	Tags    *string `json:"tags,omitempty" validate:"omitempty,max=500"`
}

type updateContactRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Company *string `json:"company,omitempty" validate:"omitempty,max=200"`
	Tags    *string `json:"tags,omitempty" validate:"omitempty,max=500"`
}

// CreateContact inserts a contact and records its event in one transaction.
func CreateContact(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createContactRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contact, err := svc.Create(r.Context(), contacts.CreateParams{
			TenantID: tenantID,
			ActorID:  actorFromContext(r.Context()),
			Name:     body.Name,
			Email:    body.Email,
			Phone:    body.Phone,
			Company:  body.Company,
			Tags:     body.Tags,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, contact)
	}
}

func GetContact(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contactID, err := pathUUID(chi.URLParam(r, "contactId"), "contact id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contact, err := svc.Get(r.Context(), tenantID, contactID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contact)
	}
}

func ListContacts(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
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

		result, err := svc.List(r.Context(), contacts.ListParams{
			TenantID: tenantID,
			Limit:    limit,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
			Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func UpdateContact(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contactID, err := pathUUID(chi.URLParam(r, "contactId"), "contact id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateContactRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Name == nil && body.Email == nil && body.Phone == nil && body.Company == nil && body.Tags == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update"))
			return
		}

		contact, err := svc.Update(r.Context(), contacts.UpdateParams{
			TenantID:  tenantID,
			ContactID: contactID,
			Name:      body.Name,
			Email:     body.Email,
			Phone:     body.Phone,
			Company:   body.Company,
			Tags:      body.Tags,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contact)
	}
}

func DeleteContact(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contactID, err := pathUUID(chi.URLParam(r, "contactId"), "contact id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), tenantID, contactID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
