package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	"github.com/pipeflowhq/pipeflow-backend/api/validators"
	"github.com/pipeflowhq/pipeflow-backend/internal/pipelines"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

type createPipelineRequest struct {
	Name   string   `json:"name" validate:"required,min=1,max=200"`
	Stages []string `json:"stages" validate:"required,min=1,max=20,dive,required,min=1,max=100"`
}

// CreatePipeline builds a pipeline with its ordered stages.
func CreatePipeline(svc pipelines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createPipelineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pipeline, err := svc.Create(r.Context(), pipelines.CreateParams{
			TenantID: tenantID,
			Name:     body.Name,
			Stages:   body.Stages,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, pipeline)
	}
}

func GetPipeline(svc pipelines.Service, logg *logger.Logger) http.HandlerFunc {
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

		pipeline, err := svc.Get(r.Context(), tenantID, pipelineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pipeline)
	}
}

func ListPipelines(svc pipelines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
