package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	"github.com/pipeflowhq/pipeflow-backend/api/validators"
	"github.com/pipeflowhq/pipeflow-backend/internal/opportunities"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

type createOpportunityRequest struct {
	PipelineID string  `json:"pipelineId" validate:"required,uuid4"`
	StageID    string  `json:"stageId" validate:"required,uuid4"`
	ContactID  *string `json:"contactId,omitempty" validate:"omitempty,uuid4"`
	Title      string  `json:"title" validate:"required,min=1,max=200"`
	Value      string  `json:"value,omitempty"`
}

type moveOpportunityRequest struct {
	ToStageID string `json:"toStageId" validate:"required,uuid4"`
}

// CreateOpportunity adds a deal card and records its event atomically.
func CreateOpportunity(svc opportunities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOpportunityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pipelineID, err := pathUUID(body.PipelineID, "pipeline id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stageID, err := pathUUID(body.StageID, "stage id")
		if err != nil {
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

		value := decimal.Zero
		if body.Value != "" {
			parsed, err := decimal.NewFromString(body.Value)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid value"))
				return
			}
			if parsed.IsNegative() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "value cannot be negative"))
				return
			}
			value = parsed
		}

		opportunity, err := svc.Create(r.Context(), opportunities.CreateParams{
			TenantID:   tenantID,
			ActorID:    actorFromContext(r.Context()),
			PipelineID: pipelineID,
			StageID:    stageID,
			ContactID:  contactID,
			Title:      body.Title,
			Value:      value,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, opportunity)
	}
}

// MoveOpportunity shifts a deal card between stages of its pipeline.
func MoveOpportunity(svc opportunities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		opportunityID, err := pathUUID(chi.URLParam(r, "opportunityId"), "opportunity id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body moveOpportunityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		toStageID, err := pathUUID(body.ToStageID, "stage id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		opportunity, err := svc.MoveStage(r.Context(), opportunities.MoveStageParams{
			TenantID:      tenantID,
			ActorID:       actorFromContext(r.Context()),
			OpportunityID: opportunityID,
			ToStageID:     toStageID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, opportunity)
	}
}

// PipelineBoard returns the kanban view for a pipeline.
func PipelineBoard(svc opportunities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pipelineID, err := pathUUID(chi.URLParam(r, "pipelineId"), "pipeline id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		board, err := svc.Board(r.Context(), tenantID, pipelineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, board)
	}
}
