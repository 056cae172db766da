package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends a row inside the caller's transaction. Emitting outside a
// transaction would break the atomicity guarantee, so tx is mandatory.
func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchPublishable returns pending rows plus failed rows still under the
// retry bound, oldest first.
func (r *Repository) FetchPublishable(tx *gorm.DB, limit, maxRetries int) ([]models.OutboxEvent, error) {
	conn := r.conn(tx)
	var rows []models.OutboxEvent
	err := conn.
		Where("status = ? OR (status = ? AND retry_count < ?)",
			enums.EventStatusPending, enums.EventStatusFailed, maxRetries).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkProcessedTx(tx *gorm.DB, id uuid.UUID) error {
	return r.conn(tx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.EventStatusProcessed,
			"processed_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.conn(tx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.EventStatusFailed,
			"error_message": cause.Error(),
			"retry_count":   gorm.Expr("retry_count + 1"),
		}).Error
}

// MarkTerminalTx parks a poison row: failed with the retry counter at the
// bound so FetchPublishable never returns it again.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, cause error, maxRetries int) error {
	return r.conn(tx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.EventStatusFailed,
			"error_message": cause.Error(),
			"retry_count":   maxRetries,
		}).Error
}

// DeleteProcessedBefore prunes delivered rows older than the cutoff and
// reports how many were removed.
func (r *Repository) DeleteProcessedBefore(cutoff time.Time) (int64, error) {
	res := r.db.
		Where("status = ? AND processed_at < ?", enums.EventStatusProcessed, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// CountByStatus reports how many rows sit in the given status; the
// publisher samples the pending count as its backlog gauge.
func (r *Repository) CountByStatus(status enums.EventStatus) (int64, error) {
	var count int64
	err := r.db.Model(&models.OutboxEvent{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
