package entitlements

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/internal/subscriptions"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
)

// Source tags where a resolved entitlement value came from.
type Source string

const (
	SourcePlan     Source = "PLAN"
	SourceOverride Source = "OVERRIDE"
)

// Item is one resolved entitlement value.
type Item struct {
	Key    string            `json:"key"`
	Value  string            `json:"value"`
	Source Source            `json:"source"`
	Type   enums.FeatureType `json:"type"`
}

// Resolved is the full entitlement set for a tenant at a point in time.
type Resolved struct {
	TenantID           uuid.UUID                `json:"tenantId"`
	PlanCode           enums.SubscriptionPlan   `json:"planCode"`
	Status             enums.SubscriptionStatus `json:"status"`
	SeatsQuantity      int                      `json:"seatsQuantity"`
	ActiveSeats        int                      `json:"activeSeats"`
	EntitlementVersion int64                    `json:"entitlementVersion"`
	Items              []Item                   `json:"items"`
}

type seatCounter interface {
	CountActive(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// ComputerParams wire the computer's collaborators.
type ComputerParams struct {
	Catalog       *Catalog
	Subscriptions subscriptions.Repository
	Overrides     OverrideRepository
	Ledger        *Ledger
	Seats         seatCounter
}

// Computer resolves effective entitlements by overlaying tenant overrides on
// plan defaults.
type Computer struct {
	catalog   *Catalog
	subs      subscriptions.Repository
	overrides OverrideRepository
	ledger    *Ledger
	seats     seatCounter
}

// NewComputer builds the entitlement computer.
func NewComputer(params ComputerParams) (*Computer, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.Overrides == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "override repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Seats == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "seat counter required")
	}
	return &Computer{
		catalog:   params.Catalog,
		subs:      params.Subscriptions,
		overrides: params.Overrides,
		ledger:    params.Ledger,
		seats:     params.Seats,
	}, nil
}

// Compute resolves the tenant's entitlements. Tenants without an active or
// trialing subscription get a not-found error rather than an empty set.
func (c *Computer) Compute(ctx context.Context, tenantID uuid.UUID) (*Resolved, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}

	sub, err := c.subs.FindCurrentByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !sub.Status.IsEntitled() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription for tenant")
	}

	plan, ok := c.catalog.Get(sub.Plan)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan missing from catalog")
	}

	byKey := make(map[string]Item, len(plan.Defaults))
	for _, def := range plan.Defaults {
		byKey[def.Key] = Item{
			Key:    def.Key,
			Value:  def.Value(),
			Source: SourcePlan,
			Type:   def.Type,
		}
	}

	overrides, err := c.overrides.ListEnabledByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, row := range overrides {
		byKey[row.FeatureKey] = Item{
			Key:    row.FeatureKey,
			Value:  row.Value(),
			Source: SourceOverride,
			Type:   row.FeatureType,
		}
	}

	activeSeats, err := c.seats.CountActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	version, err := c.ledger.CurrentVersion(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(byKey))
	for _, item := range byKey {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	return &Resolved{
		TenantID:           tenantID,
		PlanCode:           plan.Code,
		Status:             sub.Status,
		SeatsQuantity:      sub.MaxSeats,
		ActiveSeats:        int(activeSeats),
		EntitlementVersion: version,
		Items:              items,
	}, nil
}
