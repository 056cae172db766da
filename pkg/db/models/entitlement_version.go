package models

import (
	"time"

	"github.com/google/uuid"
)

// EntitlementVersion is the per-tenant monotonic counter downstream consumers
// compare against for cache invalidation. Exactly one row per tenant; the
// version never decreases. All writers go through the ledger's Bump so the
// increment stays atomic.
type EntitlementVersion struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_entitlement_versions_tenant"`
	Version   int64     `gorm:"column:version;not null;default:1"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
