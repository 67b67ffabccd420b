package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/pagination"
)

// Repository exposes persistence helpers for in-app notifications.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, tenantID uuid.UUID) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listNotificationsParams struct {
	TenantID   uuid.UUID
	UnreadOnly bool
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("tenant_id = ?", params.TenantID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND tenant_id = ? AND read_at IS NULL", notificationID, tenantID).
		Update("read_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("tenant_id = ? AND read_at IS NULL", tenantID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) CountUnread(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("tenant_id = ? AND read_at IS NULL", tenantID).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
