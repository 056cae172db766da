package processor

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/internal/subscriptions"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/outbox"
	"github.com/kitlyhq/kitly-backend/pkg/outbox/payloads"
)

const (
	EventTypeSubscriptionCreated = "customer.subscription.created"
	EventTypeSubscriptionUpdated = "customer.subscription.updated"
	EventTypeSubscriptionDeleted = "customer.subscription.deleted"
)

// PlanResolver maps a provider price id onto a subscription plan.
type PlanResolver interface {
	PlanForPrice(priceID string) (enums.SubscriptionPlan, bool)
}

// SubscriptionHandlerParams wire the subscription-change handler.
type SubscriptionHandlerParams struct {
	Subscriptions subscriptions.Repository
	Ledger        *entitlements.Ledger
	Outbox        *outbox.Service
	Plans         PlanResolver
}

// SubscriptionHandler applies created/updated/deleted subscription events.
// Deletion shares the update path; the status value carries the difference.
type SubscriptionHandler struct {
	subs   subscriptions.Repository
	ledger *entitlements.Ledger
	outbox *outbox.Service
	plans  PlanResolver
}

// NewSubscriptionHandler builds the handler.
func NewSubscriptionHandler(params SubscriptionHandlerParams) (*SubscriptionHandler, error) {
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan resolver required")
	}
	return &SubscriptionHandler{
		subs:   params.Subscriptions,
		ledger: params.Ledger,
		outbox: params.Outbox,
		plans:  params.Plans,
	}, nil
}

func (h *SubscriptionHandler) Handle(ctx context.Context, tx *gorm.DB, event models.InboundEvent) error {
	object := objectBytes(event.Payload)

	var stripeSub stripe.Subscription
	if err := json.Unmarshal(object, &stripeSub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription payload")
	}

	tenantID, err := subscriptions.TenantIDFromMetadata(stripeSub.Metadata)
	if err != nil {
		return err
	}

	repo := h.subs.WithTx(tx)

	var stored *models.Subscription
	if stripeSub.ID != "" {
		stored, err = repo.FindByStripeID(ctx, stripeSub.ID)
		if err != nil {
			return err
		}
	}
	if stored == nil {
		stored, err = repo.FindCurrentByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
	}

	plan, err := h.resolvePlan(object, &stripeSub, stored)
	if err != nil {
		return err
	}

	if stored == nil {
		built, buildErr := subscriptions.BuildSubscriptionFromStripe(&stripeSub, tenantID, plan)
		if buildErr != nil {
			return buildErr
		}
		if err := repo.Create(ctx, built); err != nil {
			return err
		}
		stored = built
	} else {
		if err := subscriptions.UpdateSubscriptionFromStripe(stored, &stripeSub, plan); err != nil {
			return err
		}
		if err := repo.Update(ctx, stored); err != nil {
			return err
		}
	}

	if _, err := h.ledger.WithTx(tx).Bump(ctx, tenantID); err != nil {
		return err
	}

	return h.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventEntitlementsChanged,
		AggregateType: enums.AggregateTenant,
		AggregateID:   tenantID,
		Version:       1,
		Data: payloads.EntitlementsChangedEvent{
			TenantID: tenantID,
			Plan:     stored.Plan,
			Status:   stored.Status,
		},
	})
}

// resolvePlan prefers an explicit plan code in the payload, then the price
// mapping, then the stored row. An unresolvable plan fails the event rather
// than defaulting: silently guessing a plan would corrupt billing state.
func (h *SubscriptionHandler) resolvePlan(object []byte, stripeSub *stripe.Subscription, stored *models.Subscription) (enums.SubscriptionPlan, error) {
	var probe struct {
		Plan string `json:"plan"`
	}
	_ = json.Unmarshal(object, &probe)

	if probe.Plan != "" {
		plan, err := enums.ParseSubscriptionPlan(probe.Plan)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown plan code")
		}
		return plan, nil
	}

	if priceID := subscriptions.PriceIDFromSubscription(stripeSub); priceID != "" {
		if plan, ok := h.plans.PlanForPrice(priceID); ok {
			return plan, nil
		}
		return "", pkgerrors.New(pkgerrors.CodeValidation, "price id does not map to a known plan")
	}

	if stored != nil {
		return stored.Plan, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription payload carries no plan information")
}

// objectBytes unwraps the provider's {"data":{"object":…}} envelope when
// present; bare subscription documents pass through unchanged.
func objectBytes(payload json.RawMessage) []byte {
	var envelope struct {
		Data *struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil &&
		envelope.Data != nil && len(envelope.Data.Object) > 0 {
		return envelope.Data.Object
	}
	return payload
}
