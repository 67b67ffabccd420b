package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

const defaultProcessingTimeout = 10 * time.Minute

type staleReclaimRepo interface {
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// StaleReclaimJobParams configure the processing-row sweep.
type StaleReclaimJobParams struct {
	Logger     *logger.Logger
	Repository staleReclaimRepo
	Timeout    time.Duration
}

// NewStaleReclaimJob returns rows stuck in processing back to pending. A
// worker that crashed after claiming leaves its batch orphaned; the sweep
// makes those rows claimable again without burning a retry.
func NewStaleReclaimJob(params StaleReclaimJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultProcessingTimeout
	}
	return &staleReclaimJob{
		logg:    params.Logger,
		repo:    params.Repository,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

type staleReclaimJob struct {
	logg    *logger.Logger
	repo    staleReclaimRepo
	timeout time.Duration
	now     func() time.Time
}

func (j *staleReclaimJob) Name() string { return "outbox-stale-reclaim" }

func (j *staleReclaimJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.timeout)
	reclaimed, err := j.repo.ReclaimStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("stale reclaim: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"timeout":        j.timeout.String(),
		"rows_reclaimed": reclaimed,
	})
	if reclaimed > 0 {
		j.logg.Warn(logCtx, "reclaimed stale processing events")
		return nil
	}
	j.logg.Info(logCtx, "no stale processing events")
	return nil
}
