package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

// Subscription persists provider subscription state per tenant.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID             uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;index"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;uniqueIndex:ux_subscriptions_stripe_id"`
	Plan                 enums.SubscriptionPlan   `gorm:"column:plan;type:subscription_plan;not null;default:'free'"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	MaxSeats             int                      `gorm:"column:max_seats;not null;default:1"`
	StartsAt             time.Time                `gorm:"column:starts_at;not null"`
	EndsAt               *time.Time               `gorm:"column:ends_at"`
	Metadata             json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
