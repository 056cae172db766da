package inbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	"github.com/kitlyhq/kitly-backend/pkg/pagination"
)

// Repository manages persistence for inbound provider events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.InboundEvent) error
	FindByProviderAndEventID(ctx context.Context, provider, eventID string) (*models.InboundEvent, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.InboundEvent, error)
	FetchPending(ctx context.Context, limit int) ([]models.InboundEvent, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	ResetFailedForRetry(ctx context.Context, maxRetries int) (int64, error)
	List(ctx context.Context, status *enums.EventStatus, cursor *pagination.Cursor, limit int) ([]models.InboundEvent, error)
	DeleteProcessedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inbox repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, event *models.InboundEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByProviderAndEventID(ctx context.Context, provider, eventID string) (*models.InboundEvent, error) {
	var event models.InboundEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InboundEvent, error) {
	var event models.InboundEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// FetchPending returns pending rows in arrival order.
func (r *repository) FetchPending(ctx context.Context, limit int) ([]models.InboundEvent, error) {
	var rows []models.InboundEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.EventStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Claim flips the row to processing only if it is still pending. A false
// return means another sweeper got there first and the caller must skip it.
func (r *repository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InboundEvent{}).
		Where("id = ? AND status = ?", id, enums.EventStatusPending).
		Updates(map[string]any{
			"status":     enums.EventStatusProcessing,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.InboundEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.EventStatusProcessed,
			"processed_at": now,
			"updated_at":   now,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return r.db.WithContext(ctx).Model(&models.InboundEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.EventStatusFailed,
			"error_message": cause.Error(),
			"retry_count":   gorm.Expr("retry_count + 1"),
			"updated_at":    time.Now().UTC(),
		}).Error
}

// ResetFailedForRetry moves failed rows under the retry bound back to
// pending. Rows at or above the bound stay failed for manual inspection.
func (r *repository) ResetFailedForRetry(ctx context.Context, maxRetries int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.InboundEvent{}).
		Where("status = ? AND retry_count < ?", enums.EventStatusFailed, maxRetries).
		Updates(map[string]any{
			"status":     enums.EventStatusPending,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// List returns events for the admin surface, newest first, cursor-paged.
func (r *repository) List(ctx context.Context, status *enums.EventStatus, cursor *pagination.Cursor, limit int) ([]models.InboundEvent, error) {
	query := r.db.WithContext(ctx).Model(&models.InboundEvent{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.InboundEvent
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) DeleteProcessedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).
		Where("status = ? AND processed_at < ?", enums.EventStatusProcessed, cutoff).
		Delete(&models.InboundEvent{})
	return res.RowsAffected, res.Error
}
