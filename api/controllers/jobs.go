package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pipeflowhq/pipeflow-backend/api/responses"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
)

// OutboxRunner is the dispatcher surface the trigger endpoint drives.
type OutboxRunner interface {
	RunOnce(ctx context.Context) (outbox.Summary, error)
}

// triggerResult is the flat shape trigger callers expect; no envelope.
type triggerResult struct {
	Success   bool      `json:"success"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// DispatchOutbox runs one dispatcher pass synchronously and reports the
// batch outcome. Concurrent triggers are safe; the claim step keeps each
// pass on a disjoint set of events.
func DispatchOutbox(runner OutboxRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outbox runner unavailable"))
			return
		}

		summary, err := runner.RunOnce(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dispatch outbox"))
			return
		}

		responses.WriteRaw(w, http.StatusOK, triggerResult{
			Success:   true,
			Processed: summary.Processed,
			Failed:    summary.Failed,
			Timestamp: time.Now().UTC(),
		})
	}
}
