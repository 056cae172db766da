package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/kitlyhq/kitly-backend/pkg/db"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
)

// Repository manages persistence for recorded invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Record(ctx context.Context, invoice *models.Invoice) (bool, error)
	FindByStripeID(ctx context.Context, stripeID string) (*models.Invoice, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Record inserts the invoice and reports whether a new row was written.
// Replayed provider events lose the unique-constraint race and are treated
// as already recorded.
func (r *repository) Record(ctx context.Context, invoice *models.Invoice) (bool, error) {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(invoice).Error
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_invoices_stripe_id") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) FindByStripeID(ctx context.Context, stripeID string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("stripe_invoice_id = ?", stripeID).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error) {
	var rows []models.Invoice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
