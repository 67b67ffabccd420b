package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
)

// Repository owns all reads and writes against outbox_events. Status rows
// move only forward; the single strong guarantee it provides is that
// ClaimPending is atomic with respect to concurrent claimers.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends one pending event row. The caller's transaction is
// mandatory so a rolled-back business write never leaves an orphan event.
func (r *Repository) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(event).Error
}

// ClaimPending atomically selects up to limit pending events, oldest first,
// and flips them to processing. Two concurrent claims never return
// overlapping rows: on Postgres the select takes row locks with SKIP LOCKED;
// the sqlite test driver serializes writers. An empty result is not an error.
func (r *Repository) ClaimPending(tx *gorm.DB, limit int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if limit <= 0 {
		return nil, nil
	}

	query := tx.
		Where("status = ?", enums.OutboxStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var rows []models.OutboxEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	now := time.Now().UTC()
	result := tx.Model(&models.OutboxEvent{}).
		Where("id IN ? AND status = ?", ids, enums.OutboxStatusPending).
		Updates(map[string]any{
			"status":     enums.OutboxStatusProcessing,
			"claimed_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	for i := range rows {
		rows[i].Status = enums.OutboxStatusProcessing
		claimed := now
		rows[i].ClaimedAt = &claimed
	}
	return rows, nil
}

// MarkCompleted transitions a processing event to its terminal completed
// state. Calling it on an already-terminal row is a no-op, not an error.
// A prior attempt's error message is retained for audit.
func (r *Repository) MarkCompleted(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ?", id, enums.OutboxStatusProcessing).
		Updates(map[string]any{
			"status":       enums.OutboxStatusCompleted,
			"processed_at": time.Now().UTC(),
			"claimed_at":   nil,
		}).Error
}

// MarkFailed increments the retry count and records the failure reason.
// Below maxRetries the event returns to pending for a later claim; at or
// above it the event is terminally failed and never claimed again. The
// polling cadence acts as the retry delay.
func (r *Repository) MarkFailed(ctx context.Context, id int64, errMsg string, maxRetries int) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Exec(`
UPDATE outbox_events
SET retry_count = retry_count + 1,
    error_message = ?,
    status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END,
    processed_at = CASE WHEN retry_count + 1 >= ? THEN ? ELSE NULL END,
    claimed_at = NULL
WHERE id = ? AND status = ?`,
		errMsg,
		maxRetries, string(enums.OutboxStatusFailed), string(enums.OutboxStatusPending),
		maxRetries, now,
		id, string(enums.OutboxStatusProcessing),
	).Error
}

// ReclaimStale returns processing rows claimed before the cutoff back to
// pending so a crashed invocation cannot strand them forever. The retry
// count is untouched; a reclaim is not a recorded handler failure.
func (r *Repository) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("status = ? AND claimed_at IS NOT NULL AND claimed_at < ?", enums.OutboxStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":     enums.OutboxStatusPending,
			"claimed_at": nil,
		})
	return result.RowsAffected, result.Error
}

// DeleteTerminalBefore purges completed and failed rows older than the
// cutoff. Pending and processing rows are never touched.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	result := tx.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []enums.OutboxStatus{enums.OutboxStatusCompleted, enums.OutboxStatusFailed}, cutoff).
		Delete(&models.OutboxEvent{})
	return result.RowsAffected, result.Error
}

// GetByID loads a single event row.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.OutboxEvent, error) {
	var row models.OutboxEvent
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
