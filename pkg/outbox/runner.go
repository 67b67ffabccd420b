package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/metrics"
)

const (
	defaultBatchSize  = 50
	defaultMaxRetries = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type claimRecorder interface {
	ClaimPending(tx *gorm.DB, limit int) ([]models.OutboxEvent, error)
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, maxRetries int) error
}

type handlerResolver interface {
	Resolve(eventType enums.OutboxEventType) (Handler, bool)
}

// Summary reports one runner pass.
type Summary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// RunnerParams configure a dispatcher pass.
type RunnerParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository claimRecorder
	Registry   handlerResolver
	Metrics    *metrics.OutboxMetrics
	BatchSize  int
	MaxRetries int
}

// Runner claims a bounded batch of due events and dispatches each to its
// handler. Invocations are independent single-threaded passes; concurrent
// runners coordinate only through the claim step, so re-triggering while a
// previous pass is in flight never double-processes a row.
type Runner struct {
	logg       *logger.Logger
	db         txRunner
	repo       claimRecorder
	registry   handlerResolver
	metrics    *metrics.OutboxMetrics
	batchSize  int
	maxRetries int
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("handler registry is required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Runner{
		logg:       params.Logger,
		db:         params.DB,
		repo:       params.Repository,
		registry:   params.Registry,
		metrics:    params.Metrics,
		batchSize:  batch,
		maxRetries: maxRetries,
	}, nil
}

// RunOnce executes claim -> dispatch -> record for one batch. A claim-step
// failure aborts the whole invocation; a single event's handler failure is
// caught per event so one bad event cannot take down the batch. Recorder
// failures are collected and the batch continues: rows whose status update
// was lost stay in processing until the staleness sweep returns them.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	defer func() {
		r.metrics.ObserveBatch(time.Since(start))
	}()

	var claimed []models.OutboxEvent
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, claimErr := r.repo.ClaimPending(tx, r.batchSize)
		if claimErr != nil {
			return claimErr
		}
		claimed = rows
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("claim pending events: %w", err)
	}

	var summary Summary
	var recordErrs error
	for _, event := range claimed {
		handler, known := r.registry.Resolve(event.EventType)

		eventCtx := r.logg.WithFields(ctx, map[string]any{
			"outbox_id":   event.ID,
			"event_type":  event.EventType,
			"retry_count": event.RetryCount,
		})

		if dispatchErr := dispatch(eventCtx, event, handler); dispatchErr != nil {
			summary.Failed++
			r.metrics.IncFailed(string(event.EventType))
			r.logg.Warn(r.logg.WithField(eventCtx, "error", dispatchErr.Error()), "outbox handler failed")
			if markErr := r.repo.MarkFailed(ctx, event.ID, dispatchErr.Error(), r.maxRetries); markErr != nil {
				recordErrs = multierr.Append(recordErrs, fmt.Errorf("mark failed %d: %w", event.ID, markErr))
			}
			continue
		}

		summary.Processed++
		r.metrics.IncProcessed(string(event.EventType))
		if !known {
			r.logg.Warn(eventCtx, "unknown event type completed as no-op")
		}
		if markErr := r.repo.MarkCompleted(ctx, event.ID); markErr != nil {
			recordErrs = multierr.Append(recordErrs, fmt.Errorf("mark completed %d: %w", event.ID, markErr))
		}
	}

	if len(claimed) > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"claimed":   len(claimed),
			"processed": summary.Processed,
			"failed":    summary.Failed,
		}), "outbox batch complete")
	}
	return summary, recordErrs
}

// dispatch isolates a single handler call, converting panics to errors so
// one event cannot abort the batch.
func dispatch(ctx context.Context, event models.OutboxEvent, handler Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, event)
}
