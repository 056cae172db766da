package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

// EntitlementsChangedEvent tells downstream systems a tenant's effective
// entitlements may differ from what they cached.
type EntitlementsChangedEvent struct {
	TenantID uuid.UUID                `json:"tenantId"`
	Plan     enums.SubscriptionPlan   `json:"plan"`
	Status   enums.SubscriptionStatus `json:"status"`
}

// MembershipChangedEvent is emitted whenever a seat-affecting membership
// write lands.
type MembershipChangedEvent struct {
	TenantID    uuid.UUID              `json:"tenantId"`
	UserID      uuid.UUID              `json:"userId"`
	Role        string                 `json:"role"`
	Status      enums.MembershipStatus `json:"status"`
	ActiveSeats int                    `json:"activeSeats"`
}

// InvoiceRecordedEvent surfaces a newly recorded provider invoice.
type InvoiceRecordedEvent struct {
	TenantID        uuid.UUID       `json:"tenantId"`
	StripeInvoiceID string          `json:"stripeInvoiceId"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	Currency        string          `json:"currency"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
}
