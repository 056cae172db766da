package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
)

// OverrideRepository manages tenant-specific entitlement overrides.
type OverrideRepository interface {
	WithTx(tx *gorm.DB) OverrideRepository
	Upsert(ctx context.Context, row *models.Entitlement) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Entitlement, error)
	ListEnabledByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Entitlement, error)
	Delete(ctx context.Context, tenantID uuid.UUID, featureKey string) error
}

type overrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository returns an override repository bound to the provided database.
func NewOverrideRepository(db *gorm.DB) OverrideRepository {
	return &overrideRepository{db: db}
}

func (r *overrideRepository) WithTx(tx *gorm.DB) OverrideRepository {
	if tx == nil {
		return r
	}
	return &overrideRepository{db: tx}
}

// Upsert writes the override, replacing an existing row for the same
// (tenant, feature) pair.
func (r *overrideRepository) Upsert(ctx context.Context, row *models.Entitlement) error {
	row.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "feature_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"feature_type", "limit_value", "enabled", "metadata", "updated_at",
		}),
	}).Create(row).Error
}

func (r *overrideRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Entitlement, error) {
	var rows []models.Entitlement
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("feature_key ASC").
		Find(&rows).Error
	return rows, err
}

func (r *overrideRepository) ListEnabledByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Entitlement, error) {
	var rows []models.Entitlement
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND enabled = ?", tenantID, true).
		Order("feature_key ASC").
		Find(&rows).Error
	return rows, err
}

func (r *overrideRepository) Delete(ctx context.Context, tenantID uuid.UUID, featureKey string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND feature_key = ?", tenantID, featureKey).
		Delete(&models.Entitlement{}).Error
}
