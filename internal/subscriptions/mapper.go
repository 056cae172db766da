package subscriptions

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
)

// TenantIDFromMetadata extracts the tenant ID that checkout attached to the
// Stripe subscription metadata.
func TenantIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is required")
	}
	tenantID, ok := metadata["tenant_id"]
	if !ok || strings.TrimSpace(tenantID) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(tenantID))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant_id metadata")
	}
	return id, nil
}

// PriceIDFromSubscription pulls the first item's price id.
func PriceIDFromSubscription(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

// BuildSubscriptionFromStripe maps a Stripe subscription into the canonical model.
func BuildSubscriptionFromStripe(stripeSub *stripe.Subscription, tenantID uuid.UUID, plan enums.SubscriptionPlan) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	if !plan.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invalid subscription plan")
	}

	metadata, err := marshalMetadata(stripeSub.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal metadata")
	}

	stripeID := stripeSub.ID
	sub := &models.Subscription{
		TenantID:             tenantID,
		StripeSubscriptionID: &stripeID,
		Plan:                 plan,
		Status:               enums.SubscriptionStatusFromStripe(string(stripeSub.Status)),
		MaxSeats:             seatsFromSubscription(stripeSub),
		StartsAt:             startFromSubscription(stripeSub),
		EndsAt:               endFromSubscription(stripeSub),
		Metadata:             metadata,
	}
	return sub, nil
}

// UpdateSubscriptionFromStripe mutates the provided subscription with new Stripe data.
func UpdateSubscriptionFromStripe(target *models.Subscription, stripeSub *stripe.Subscription, plan enums.SubscriptionPlan) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	metadata, err := marshalMetadata(stripeSub.Metadata)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal metadata")
	}

	stripeID := stripeSub.ID
	target.StripeSubscriptionID = &stripeID
	if plan.IsValid() {
		target.Plan = plan
	}
	target.Status = enums.SubscriptionStatusFromStripe(string(stripeSub.Status))
	target.MaxSeats = seatsFromSubscription(stripeSub)
	target.StartsAt = startFromSubscription(stripeSub)
	target.EndsAt = endFromSubscription(stripeSub)
	target.Metadata = metadata
	return nil
}

func marshalMetadata(metadata map[string]string) (json.RawMessage, error) {
	if len(metadata) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func seatsFromSubscription(sub *stripe.Subscription) int {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return 1
	}
	qty := int(sub.Items.Data[0].Quantity)
	if qty < 1 {
		return 1
	}
	return qty
}

func startFromSubscription(sub *stripe.Subscription) time.Time {
	if sub != nil && sub.StartDate != 0 {
		return time.Unix(sub.StartDate, 0).UTC()
	}
	return time.Now().UTC()
}

func endFromSubscription(sub *stripe.Subscription) *time.Time {
	if sub == nil {
		return nil
	}
	var ts int64
	switch {
	case sub.EndedAt != 0:
		ts = sub.EndedAt
	case sub.CancelAt != 0:
		ts = sub.CancelAt
	case sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd != 0:
		ts = sub.Items.Data[0].CurrentPeriodEnd
	}
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
