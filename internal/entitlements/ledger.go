package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/kitlyhq/kitly-backend/pkg/db"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
)

// VersionRepository manages persistence for the per-tenant version counter.
type VersionRepository interface {
	WithTx(tx *gorm.DB) VersionRepository
	Find(ctx context.Context, tenantID uuid.UUID) (*models.EntitlementVersion, error)
	Insert(ctx context.Context, row *models.EntitlementVersion) error
	Increment(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository returns a version repository bound to the provided database.
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) WithTx(tx *gorm.DB) VersionRepository {
	if tx == nil {
		return r
	}
	return &versionRepository{db: tx}
}

func (r *versionRepository) Find(ctx context.Context, tenantID uuid.UUID) (*models.EntitlementVersion, error) {
	var row models.EntitlementVersion
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *versionRepository) Insert(ctx context.Context, row *models.EntitlementVersion) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// Increment applies a single atomic version = version + 1 and reports how many
// rows matched. Read-increment-write would lose updates under concurrent
// bumpers; the ledger invariant depends on this being one UPDATE.
func (r *versionRepository) Increment(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.EntitlementVersion{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// Ledger is the single entry point for reading and bumping entitlement
// versions. Every collaborator that changes a tenant's entitlements must go
// through Bump; nothing else writes the version column.
type Ledger struct {
	repo VersionRepository
}

// NewLedger wires the ledger with the provided repository.
func NewLedger(repo VersionRepository) (*Ledger, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "version repository required")
	}
	return &Ledger{repo: repo}, nil
}

// WithTx returns a ledger bound to the transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{repo: l.repo.WithTx(tx)}
}

// GetOrCreate returns the tenant's version row, creating it at version 1 on
// first access. A concurrent first-create loses the unique-constraint race
// and re-reads the winner's row instead of failing.
func (l *Ledger) GetOrCreate(ctx context.Context, tenantID uuid.UUID) (*models.EntitlementVersion, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	row, err := l.repo.Find(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}

	fresh := &models.EntitlementVersion{TenantID: tenantID, Version: 1}
	if err := l.repo.Insert(ctx, fresh); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_entitlement_versions_tenant") {
			existing, findErr := l.repo.Find(ctx, tenantID)
			if findErr != nil {
				return nil, findErr
			}
			if existing == nil {
				return nil, pkgerrors.New(pkgerrors.CodeInternal, "version row vanished after conflict")
			}
			return existing, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Bump atomically increments the tenant's version and returns the stored
// row after the increment. A missing row is created first and then bumped.
func (l *Ledger) Bump(ctx context.Context, tenantID uuid.UUID) (*models.EntitlementVersion, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}

	affected, err := l.repo.Increment(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := l.GetOrCreate(ctx, tenantID); err != nil {
			return nil, err
		}
		affected, err = l.repo.Increment(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "version bump did not apply")
		}
	}

	row, err := l.repo.Find(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "version row missing after bump")
	}
	return row, nil
}

// CurrentVersion reads the tenant's version, creating the row when absent.
func (l *Ledger) CurrentVersion(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	row, err := l.GetOrCreate(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return row.Version, nil
}
