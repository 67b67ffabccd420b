package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
)

const notificationRetentionDays = 30

type notificationsCleanupRepo interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleanupJobParams configure the read-notification purge.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationsCleanupRepo
	Retention  int
}

// NewNotificationCleanupJob deletes notifications read longer ago than the
// retention window. Unread rows are kept regardless of age.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	repo      notificationsCleanupRepo
	retention int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
