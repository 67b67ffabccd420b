package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
	pkgerrors "github.com/pipeflowhq/pipeflow-backend/pkg/errors"
	"github.com/pipeflowhq/pipeflow-backend/pkg/pagination"
)

// Service manages in-app notifications for the web client.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Notification, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, tenantID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
}

// NewService wires notification dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

// CreateParams carries a new notification.
type CreateParams struct {
	TenantID uuid.UUID
	Kind     enums.NotificationKind
	Title    string
	Message  string
	Link     *string
}

// ListParams configures notification pagination.
type ListParams struct {
	TenantID   uuid.UUID
	UnreadOnly bool
	Limit      int
	Cursor     string
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Notification, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}

	notification := &models.Notification{
		TenantID: params.TenantID,
		Kind:     params.Kind,
		Title:    title,
		Message:  strings.TrimSpace(params.Message),
		Link:     params.Link,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return notification, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}

	query := listNotificationsParams{
		TenantID:   params.TenantID,
		UnreadOnly: params.UnreadOnly,
		Limit:      params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID) error {
	if tenantID == uuid.Nil || notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant and notification ids required")
	}
	updated, err := s.repo.MarkRead(ctx, tenantID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found or already read")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if tenantID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	count, err := s.repo.MarkAllRead(ctx, tenantID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark all notifications read")
	}
	return count, nil
}

func (s *service) UnreadCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if tenantID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	count, err := s.repo.CountUnread(ctx, tenantID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}
