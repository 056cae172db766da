package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice records paid provider invoices. Rows are deduplicated on the
// provider invoice id so replayed webhooks cannot double-record revenue.
type Invoice struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID         uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	StripeInvoiceID  string          `gorm:"column:stripe_invoice_id;not null;uniqueIndex:ux_invoices_stripe_id"`
	AmountPaid       decimal.Decimal `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	Currency         string          `gorm:"column:currency;not null;default:'usd'"`
	Status           string          `gorm:"column:status;not null"`
	InvoicePDF       *string         `gorm:"column:invoice_pdf"`
	HostedInvoiceURL *string         `gorm:"column:hosted_invoice_url"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
