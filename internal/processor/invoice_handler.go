package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/internal/invoices"
	"github.com/kitlyhq/kitly-backend/internal/subscriptions"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/outbox"
	"github.com/kitlyhq/kitly-backend/pkg/outbox/payloads"
)

// Inbound invoice event types.
const (
	EventTypeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventTypeInvoicePaymentFailed    = "invoice.payment_failed"
)

type invoiceDoc struct {
	ID                string            `json:"id"`
	AmountPaid        int64             `json:"amount_paid"`
	Currency          string            `json:"currency"`
	Status            string            `json:"status"`
	InvoicePDF        string            `json:"invoice_pdf"`
	HostedInvoiceURL  string            `json:"hosted_invoice_url"`
	Subscription      string            `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

// InvoiceHandlerParams wire the invoice event handler.
type InvoiceHandlerParams struct {
	Invoices      invoices.Repository
	Subscriptions subscriptions.Repository
	Ledger        *entitlements.Ledger
	Outbox        *outbox.Service
	Logger        *logger.Logger
}

// InvoiceHandler records paid invoices and surfaces failed payments.
// Payment failures are logged without a status transition; dunning stays
// with the billing provider.
type InvoiceHandler struct {
	invoices invoices.Repository
	subs     subscriptions.Repository
	ledger   *entitlements.Ledger
	outbox   *outbox.Service
	logg     *logger.Logger
}

// NewInvoiceHandler builds the handler.
func NewInvoiceHandler(params InvoiceHandlerParams) (*InvoiceHandler, error) {
	if params.Invoices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repo required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &InvoiceHandler{
		invoices: params.Invoices,
		subs:     params.Subscriptions,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		logg:     params.Logger,
	}, nil
}

func (h *InvoiceHandler) Handle(ctx context.Context, tx *gorm.DB, event models.InboundEvent) error {
	var doc invoiceDoc
	if err := json.Unmarshal(objectBytes(event.Payload), &doc); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice payload")
	}
	if doc.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}

	tenantID, err := h.locateTenant(ctx, tx, doc)
	if err != nil {
		return err
	}

	if event.EventType == EventTypeInvoicePaymentFailed {
		logCtx := h.logg.WithFields(ctx, map[string]any{
			"tenant_id":  tenantID.String(),
			"invoice_id": doc.ID,
		})
		h.logg.Warn(logCtx, "invoice payment failed")
		return nil
	}

	amount := decimal.NewFromInt(doc.AmountPaid).Div(decimal.NewFromInt(100))
	currency := doc.Currency
	if currency == "" {
		currency = "usd"
	}
	var paidAt *time.Time
	if doc.StatusTransitions.PaidAt != 0 {
		t := time.Unix(doc.StatusTransitions.PaidAt, 0).UTC()
		paidAt = &t
	}

	invoice := &models.Invoice{
		TenantID:         tenantID,
		StripeInvoiceID:  doc.ID,
		AmountPaid:       amount,
		Currency:         currency,
		Status:           doc.Status,
		InvoicePDF:       optionalString(doc.InvoicePDF),
		HostedInvoiceURL: optionalString(doc.HostedInvoiceURL),
		PaidAt:           paidAt,
	}

	created, err := h.invoices.WithTx(tx).Record(ctx, invoice)
	if err != nil {
		return err
	}
	if !created {
		// Replayed provider event; the first delivery already emitted.
		return nil
	}

	if _, err := h.ledger.WithTx(tx).Bump(ctx, tenantID); err != nil {
		return err
	}

	return h.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceRecorded,
		AggregateType: enums.AggregateTenant,
		AggregateID:   tenantID,
		Version:       1,
		Data: payloads.InvoiceRecordedEvent{
			TenantID:        tenantID,
			StripeInvoiceID: doc.ID,
			AmountPaid:      amount,
			Currency:        currency,
			PaidAt:          paidAt,
		},
	})
}

// locateTenant prefers the tenant_id metadata and falls back to the stored
// subscription the invoice references.
func (h *InvoiceHandler) locateTenant(ctx context.Context, tx *gorm.DB, doc invoiceDoc) (uuid.UUID, error) {
	if tenantID, err := subscriptions.TenantIDFromMetadata(doc.Metadata); err == nil {
		return tenantID, nil
	}
	if doc.Subscription != "" {
		stored, err := h.subs.WithTx(tx).FindByStripeID(ctx, doc.Subscription)
		if err != nil {
			return uuid.Nil, err
		}
		if stored != nil {
			return stored.TenantID, nil
		}
	}
	return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice payload does not resolve to a tenant")
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
