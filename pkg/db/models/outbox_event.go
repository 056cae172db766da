package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

// OutboxEvent is an append-only record of a business-significant change,
// written in the same transaction as the change itself and delivered
// asynchronously by the publisher sweep.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.EventStatus         `gorm:"column:status;type:event_status;not null;default:'pending'"`
	RetryCount    int                       `gorm:"column:retry_count;not null;default:0"`
	ErrorMessage  *string                   `gorm:"column:error_message"`
	ProcessedAt   *time.Time                `gorm:"column:processed_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
