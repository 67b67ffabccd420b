package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pipeflowhq/pipeflow-backend/pkg/db/models"
	"github.com/pipeflowhq/pipeflow-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event_type TEXT NOT NULL,
  entity_type TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  retry_count INTEGER NOT NULL DEFAULT 0,
  error_message TEXT,
  created_at DATETIME,
  claimed_at DATETIME,
  processed_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM outbox_events").Error)
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, status enums.OutboxStatus, createdAt time.Time) models.OutboxEvent {
	t.Helper()

	event := models.OutboxEvent{
		EventType:  enums.EventContactCreated,
		EntityType: enums.EntityContact,
		EntityID:   uuid.New(),
		Payload:    []byte(`{"version":1,"data":{}}`),
		Status:     status,
		CreatedAt:  createdAt,
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

func TestInsert_RequiresTransaction(t *testing.T) {
	repo := NewRepository(setupOutboxTestDB(t))

	err := repo.Insert(nil, &models.OutboxEvent{})
	require.Error(t, err)
}

func TestInsert_RollbackLeavesNoRow(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	tx := db.Begin()
	require.NoError(t, tx.Error)
	require.NoError(t, repo.Insert(tx, &models.OutboxEvent{
		EventType:  enums.EventInvoiceIssued,
		EntityType: enums.EntityInvoice,
		EntityID:   uuid.New(),
		Payload:    []byte(`{}`),
		Status:     enums.OutboxStatusPending,
	}))
	require.NoError(t, tx.Rollback().Error)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClaimPending_OldestFirstWithinLimit(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	base := time.Now().UTC().Add(-time.Hour)
	first := seedEvent(t, db, enums.OutboxStatusPending, base)
	second := seedEvent(t, db, enums.OutboxStatusPending, base.Add(time.Minute))
	third := seedEvent(t, db, enums.OutboxStatusPending, base.Add(2*time.Minute))

	claimed, err := repo.ClaimPending(db, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, first.ID, claimed[0].ID)
	assert.Equal(t, second.ID, claimed[1].ID)
	for _, event := range claimed {
		assert.Equal(t, enums.OutboxStatusProcessing, event.Status)
		assert.NotNil(t, event.ClaimedAt)
	}

	remaining, err := repo.ClaimPending(db, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, third.ID, remaining[0].ID)

	empty, err := repo.ClaimPending(db, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClaimPending_SameTimestampOrdersByID(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	// Rows created inside the same timestamp tick fall back to insertion order.
	at := time.Now().UTC().Add(-time.Minute)
	a := seedEvent(t, db, enums.OutboxStatusPending, at)
	b := seedEvent(t, db, enums.OutboxStatusPending, at)
	c := seedEvent(t, db, enums.OutboxStatusPending, at)

	claimed, err := repo.ClaimPending(db, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, a.ID, claimed[0].ID)
	assert.Equal(t, b.ID, claimed[1].ID)

	rest, err := repo.ClaimPending(db, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, c.ID, rest[0].ID)
}

func TestClaimPending_ZeroLimitIsNoop(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	seedEvent(t, db, enums.OutboxStatusPending, time.Now().UTC())

	claimed, err := repo.ClaimPending(db, 0)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestClaimPending_SkipsNonPending(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	seedEvent(t, db, enums.OutboxStatusProcessing, now.Add(-3*time.Minute))
	seedEvent(t, db, enums.OutboxStatusCompleted, now.Add(-2*time.Minute))
	seedEvent(t, db, enums.OutboxStatusFailed, now.Add(-time.Minute))
	pending := seedEvent(t, db, enums.OutboxStatusPending, now)

	claimed, err := repo.ClaimPending(db, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, pending.ID, claimed[0].ID)
}

func TestClaimPending_CompetingClaimersNeverOverlap(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	total := 20
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < total; i++ {
		seedEvent(t, db, enums.OutboxStatusPending, base.Add(time.Duration(i)*time.Second))
	}

	// sqlite admits one writer at a time; the mutex stands in for the row
	// locks a postgres claim takes with SKIP LOCKED.
	var claimMu sync.Mutex
	var wg sync.WaitGroup
	results := make([][]int64, 4)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				claimMu.Lock()
				claimed, err := repo.ClaimPending(db, 3)
				claimMu.Unlock()
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if len(claimed) == 0 {
					return
				}
				for _, event := range claimed {
					results[w] = append(results[w], event.ID)
				}
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[int64]int)
	for _, ids := range results {
		for _, id := range ids {
			seen[id]++
		}
	}
	require.Len(t, seen, total)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "event %d claimed %d times", id, n)
	}
}

func TestMarkCompleted(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	event := seedEvent(t, db, enums.OutboxStatusPending, time.Now().UTC())
	claimed, err := repo.ClaimPending(db, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, repo.MarkCompleted(ctx, event.ID))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusCompleted, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Nil(t, stored.ClaimedAt)

	// Terminal rows are left alone on a second call.
	require.NoError(t, repo.MarkCompleted(ctx, event.ID))
	again, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusCompleted, again.Status)
}

func TestMarkFailed_RetriesThenTerminal(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	maxRetries := 2

	event := seedEvent(t, db, enums.OutboxStatusPending, time.Now().UTC().Add(-time.Minute))

	claimed, err := repo.ClaimPending(db, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.MarkFailed(ctx, event.ID, "smtp timeout", maxRetries))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "smtp timeout", *stored.ErrorMessage)
	assert.Nil(t, stored.ClaimedAt)
	assert.Nil(t, stored.ProcessedAt)

	claimed, err = repo.ClaimPending(db, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.MarkFailed(ctx, event.ID, "smtp timeout again", maxRetries))

	stored, err = repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 2, stored.RetryCount)
	assert.NotNil(t, stored.ProcessedAt)

	// Terminally failed rows never come back.
	empty, err := repo.ClaimPending(db, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMarkCompleted_AfterRetryKeepsErrorHistory(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	event := seedEvent(t, db, enums.OutboxStatusPending, time.Now().UTC().Add(-time.Minute))

	claimed, err := repo.ClaimPending(db, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.MarkFailed(ctx, event.ID, "SMTP timeout", 3))

	claimed, err = repo.ClaimPending(db, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.MarkCompleted(ctx, event.ID))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "SMTP timeout", *stored.ErrorMessage)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestMarkFailed_OnlyTouchesProcessing(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	event := seedEvent(t, db, enums.OutboxStatusPending, time.Now().UTC())
	require.NoError(t, repo.MarkFailed(ctx, event.ID, "not claimed", 5))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusPending, stored.Status)
	assert.Zero(t, stored.RetryCount)
}

func TestReclaimStale(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	stale := seedEvent(t, db, enums.OutboxStatusProcessing, now.Add(-time.Hour))
	staleClaim := now.Add(-30 * time.Minute)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("id = ?", stale.ID).Update("claimed_at", staleClaim).Error)

	fresh := seedEvent(t, db, enums.OutboxStatusProcessing, now)
	freshClaim := now.Add(-time.Minute)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("id = ?", fresh.ID).Update("claimed_at", freshClaim).Error)

	reclaimed, err := repo.ReclaimStale(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimed)

	stored, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusPending, stored.Status)
	assert.Nil(t, stored.ClaimedAt)
	assert.Zero(t, stored.RetryCount)

	untouched, err := repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusProcessing, untouched.Status)
}

func TestDeleteTerminalBefore(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	seedEvent(t, db, enums.OutboxStatusCompleted, old)
	seedEvent(t, db, enums.OutboxStatusFailed, old)
	keptPending := seedEvent(t, db, enums.OutboxStatusPending, old)
	keptRecent := seedEvent(t, db, enums.OutboxStatusCompleted, now)

	deleted, err := repo.DeleteTerminalBefore(ctx, db, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, db.Order("id ASC").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, keptPending.ID, remaining[0].ID)
	assert.Equal(t, keptRecent.ID, remaining[1].ID)
}
