package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

// UnlimitedValue is the sentinel limit meaning "no cap". It renders as the
// string "unlimited" in computed entitlements.
const UnlimitedValue int64 = -1

// Entitlement is a tenant-specific override of a plan default. Overrides win
// over plan values for the same feature key when enabled.
type Entitlement struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID    uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_entitlements_tenant_feature"`
	FeatureKey  string            `gorm:"column:feature_key;not null;uniqueIndex:ux_entitlements_tenant_feature"`
	FeatureType enums.FeatureType `gorm:"column:feature_type;type:feature_type;not null"`
	LimitValue  *int64            `gorm:"column:limit_value"`
	Enabled     bool              `gorm:"column:enabled;not null"`
	Metadata    json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Value renders the override as the string form consumers receive: booleans
// as "true"/"false", limits and quotas as decimal strings with the -1
// sentinel rendered "unlimited".
func (e Entitlement) Value() string {
	switch e.FeatureType {
	case enums.FeatureTypeBoolean:
		if e.Enabled {
			return "true"
		}
		return "false"
	default:
		if e.LimitValue == nil {
			return "0"
		}
		if *e.LimitValue == UnlimitedValue {
			return "unlimited"
		}
		return strconv.FormatInt(*e.LimitValue, 10)
	}
}
