package outbox

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  retry_count INTEGER NOT NULL DEFAULT 0,
  error_message TEXT,
  processed_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func newOutboxRow(t *testing.T, db *gorm.DB, status enums.EventStatus, retryCount int, created time.Time) models.OutboxEvent {
	t.Helper()

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventEntitlementsChanged,
		AggregateType: enums.AggregateTenant,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"event_id":"e","data":{}}`),
		Status:        status,
		CreatedAt:     created,
	}
	require.NoError(t, db.Create(&row).Error)
	if retryCount > 0 {
		require.NoError(t, db.Model(&models.OutboxEvent{}).Where("id = ?", row.ID).
			Update("retry_count", retryCount).Error)
		row.RetryCount = retryCount
	}
	return row
}

func TestRepositoryFetchPublishableSelectsPendingAndRetryable(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	pending := newOutboxRow(t, db, enums.EventStatusPending, 0, base)
	retryable := newOutboxRow(t, db, enums.EventStatusFailed, 3, base.Add(time.Minute))
	newOutboxRow(t, db, enums.EventStatusFailed, 10, base.Add(2*time.Minute))
	newOutboxRow(t, db, enums.EventStatusProcessed, 0, base.Add(3*time.Minute))

	rows, err := repo.FetchPublishable(db, 50, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, pending.ID, rows[0].ID, "oldest first")
	assert.Equal(t, retryable.ID, rows[1].ID)
}

func TestRepositoryCountByStatus(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	newOutboxRow(t, db, enums.EventStatusPending, 0, base)
	newOutboxRow(t, db, enums.EventStatusPending, 0, base.Add(time.Minute))
	newOutboxRow(t, db, enums.EventStatusFailed, 2, base.Add(2*time.Minute))
	newOutboxRow(t, db, enums.EventStatusProcessed, 0, base.Add(3*time.Minute))

	pending, err := repo.CountByStatus(enums.EventStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	failed, err := repo.CountByStatus(enums.EventStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed)

	processing, err := repo.CountByStatus(enums.EventStatusProcessing)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestRepositoryFetchPublishableHonorsBatchLimit(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		newOutboxRow(t, db, enums.EventStatusPending, 0, base.Add(time.Duration(i)*time.Second))
	}

	rows, err := repo.FetchPublishable(db, 3, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRepositoryMarkProcessedTxStampsTimestamp(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	row := newOutboxRow(t, db, enums.EventStatusPending, 0, time.Now().UTC())
	require.NoError(t, repo.MarkProcessedTx(db, row.ID))

	var stored models.OutboxEvent
	require.NoError(t, db.Where("id = ?", row.ID).First(&stored).Error)
	assert.Equal(t, enums.EventStatusProcessed, stored.Status)
	require.NotNil(t, stored.ProcessedAt)
}

func TestRepositoryMarkFailedTxIncrementsRetryCount(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	row := newOutboxRow(t, db, enums.EventStatusPending, 0, time.Now().UTC())
	require.NoError(t, repo.MarkFailedTx(db, row.ID, errors.New("sink down")))
	require.NoError(t, repo.MarkFailedTx(db, row.ID, errors.New("sink still down")))

	var stored models.OutboxEvent
	require.NoError(t, db.Where("id = ?", row.ID).First(&stored).Error)
	assert.Equal(t, enums.EventStatusFailed, stored.Status)
	assert.Equal(t, 2, stored.RetryCount)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "sink still down", *stored.ErrorMessage)
}

func TestRepositoryMarkTerminalTxParksRow(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	row := newOutboxRow(t, db, enums.EventStatusPending, 0, time.Now().UTC())
	require.NoError(t, repo.MarkTerminalTx(db, row.ID, errors.New("bad payload"), 10))

	rows, err := repo.FetchPublishable(db, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, rows, "terminal rows never surface again")
}

func TestRepositoryDeleteProcessedBeforeSparesUndelivered(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	old := newOutboxRow(t, db, enums.EventStatusProcessed, 0, cutoff.Add(-40*24*time.Hour))
	stale := cutoff.Add(-35 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("id = ?", old.ID).
		Update("processed_at", stale).Error)

	recent := newOutboxRow(t, db, enums.EventStatusProcessed, 0, cutoff.Add(-time.Hour))
	fresh := cutoff.Add(time.Hour)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("id = ?", recent.ID).
		Update("processed_at", fresh).Error)

	pendingOld := newOutboxRow(t, db, enums.EventStatusPending, 0, cutoff.Add(-40*24*time.Hour))
	failedOld := newOutboxRow(t, db, enums.EventStatusFailed, 10, cutoff.Add(-40*24*time.Hour))

	deleted, err := repo.DeleteProcessedBefore(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 3)
	ids := map[uuid.UUID]bool{}
	for _, row := range remaining {
		ids[row.ID] = true
	}
	assert.True(t, ids[recent.ID])
	assert.True(t, ids[pendingOld.ID], "pending rows are never pruned")
	assert.True(t, ids[failedOld.ID], "failed rows are never pruned")
}

func TestRepositoryInsertRequiresTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	err := repo.Insert(nil, models.OutboxEvent{})
	require.Error(t, err)
}
