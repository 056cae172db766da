package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

// InboundEvent is one externally delivered billing-provider event, stored
// before any business effect runs. The (provider, event_id) pair is the
// idempotency key: redelivery of the same pair must never create a second row.
type InboundEvent struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider     string            `gorm:"column:provider;not null;uniqueIndex:ux_inbound_events_provider_event"`
	EventID      string            `gorm:"column:event_id;not null;uniqueIndex:ux_inbound_events_provider_event"`
	EventType    string            `gorm:"column:event_type;not null"`
	Payload      json.RawMessage   `gorm:"column:payload;type:jsonb;not null"`
	Status       enums.EventStatus `gorm:"column:status;type:event_status;not null;default:'pending'"`
	RetryCount   int               `gorm:"column:retry_count;not null;default:0"`
	ErrorMessage *string           `gorm:"column:error_message"`
	ProcessedAt  *time.Time        `gorm:"column:processed_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
