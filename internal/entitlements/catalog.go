package entitlements

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

// Feature keys shared by the catalog and overrides.
const (
	FeatureAIAssistant     = "features.ai_assistant"
	FeatureProjects        = "limits.projects"
	FeatureAPICallsMonthly = "limits.api_calls_per_month"
)

// FeatureDefault is one plan-level entitlement default.
type FeatureDefault struct {
	Key        string
	Type       enums.FeatureType
	Enabled    bool
	LimitValue int64
}

// Value renders the default with the same formatting rules as stored
// overrides: booleans as true/false, -1 as unlimited, limits as numbers.
func (f FeatureDefault) Value() string {
	if f.Type == enums.FeatureTypeBoolean {
		return strconv.FormatBool(f.Enabled)
	}
	if f.LimitValue == models.UnlimitedValue {
		return "unlimited"
	}
	return strconv.FormatInt(f.LimitValue, 10)
}

// PlanDefinition is one immutable catalog entry.
type PlanDefinition struct {
	Code         enums.SubscriptionPlan
	Name         string
	MonthlyPrice decimal.Decimal
	Defaults     []FeatureDefault
}

// Entitlements returns the key to rendered-value map exposed by the plan API.
func (p PlanDefinition) Entitlements() map[string]string {
	out := make(map[string]string, len(p.Defaults))
	for _, def := range p.Defaults {
		out[def.Key] = def.Value()
	}
	return out
}

// Catalog holds the static plan definitions. It never changes at runtime.
type Catalog struct {
	plans map[enums.SubscriptionPlan]PlanDefinition
}

// NewCatalog builds the catalog with the shipped plans.
func NewCatalog() *Catalog {
	plans := map[enums.SubscriptionPlan]PlanDefinition{
		enums.SubscriptionPlanStarter: {
			Code:         enums.SubscriptionPlanStarter,
			Name:         "Starter",
			MonthlyPrice: decimal.NewFromInt(19),
			Defaults: []FeatureDefault{
				{Key: FeatureAIAssistant, Type: enums.FeatureTypeBoolean, Enabled: false},
				{Key: FeatureProjects, Type: enums.FeatureTypeLimit, LimitValue: 3},
				{Key: FeatureAPICallsMonthly, Type: enums.FeatureTypeQuota, LimitValue: 10000},
			},
		},
		enums.SubscriptionPlanBusiness: {
			Code:         enums.SubscriptionPlanBusiness,
			Name:         "Business",
			MonthlyPrice: decimal.NewFromInt(49),
			Defaults: []FeatureDefault{
				{Key: FeatureAIAssistant, Type: enums.FeatureTypeBoolean, Enabled: true},
				{Key: FeatureProjects, Type: enums.FeatureTypeLimit, LimitValue: 50},
				{Key: FeatureAPICallsMonthly, Type: enums.FeatureTypeQuota, LimitValue: 1000000},
			},
		},
		enums.SubscriptionPlanEnterprise: {
			Code:         enums.SubscriptionPlanEnterprise,
			Name:         "Enterprise",
			MonthlyPrice: decimal.NewFromInt(199),
			Defaults: []FeatureDefault{
				{Key: FeatureAIAssistant, Type: enums.FeatureTypeBoolean, Enabled: true},
				{Key: FeatureProjects, Type: enums.FeatureTypeLimit, LimitValue: models.UnlimitedValue},
				{Key: FeatureAPICallsMonthly, Type: enums.FeatureTypeQuota, LimitValue: models.UnlimitedValue},
			},
		},
	}
	return &Catalog{plans: plans}
}

// Get resolves a plan by code. Free resolves to the starter defaults.
func (c *Catalog) Get(plan enums.SubscriptionPlan) (PlanDefinition, bool) {
	def, ok := c.plans[plan.CatalogCode()]
	return def, ok
}

// Plans returns all catalog entries ordered by code.
func (c *Catalog) Plans() []PlanDefinition {
	out := make([]PlanDefinition, 0, len(c.plans))
	for _, def := range c.plans {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
