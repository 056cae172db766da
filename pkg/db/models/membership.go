package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

// Membership links a user to a tenant with a role. Seat counts are derived
// from rows whose status is active.
type Membership struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_memberships_tenant_user"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_memberships_tenant_user"`
	Role      string                 `gorm:"column:role;not null;default:'member'"`
	Status    enums.MembershipStatus `gorm:"column:status;type:membership_status;not null;default:'invited'"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
