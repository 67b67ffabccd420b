package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/pipeflowhq/pipeflow-backend/api/middleware"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
)

// tenantFromContext returns the authenticated tenant scope or a typed error.
func tenantFromContext(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.TenantIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id")
	}
	return id, nil
}

func actorFromContext(ctx context.Context) uuid.UUID {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func pathUUID(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}
