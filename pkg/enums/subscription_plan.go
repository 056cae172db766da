package enums

import (
	"fmt"
	"strings"
)

// SubscriptionPlan maps to the subscription_plan enum in Postgres.
type SubscriptionPlan string

const (
	SubscriptionPlanFree       SubscriptionPlan = "free"
	SubscriptionPlanStarter    SubscriptionPlan = "starter"
	SubscriptionPlanBusiness   SubscriptionPlan = "business"
	SubscriptionPlanEnterprise SubscriptionPlan = "enterprise"
)

var validSubscriptionPlans = []SubscriptionPlan{
	SubscriptionPlanFree,
	SubscriptionPlanStarter,
	SubscriptionPlanBusiness,
	SubscriptionPlanEnterprise,
}

// IsValid reports whether the value matches the canonical subscription_plan enum.
func (p SubscriptionPlan) IsValid() bool {
	for _, candidate := range validSubscriptionPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// CatalogCode returns the plan-catalog code the plan resolves to. Free tenants
// share the starter entitlement set.
func (p SubscriptionPlan) CatalogCode() SubscriptionPlan {
	if p == SubscriptionPlanFree {
		return SubscriptionPlanStarter
	}
	return p
}

// ParseSubscriptionPlan converts raw input into SubscriptionPlan.
func ParseSubscriptionPlan(value string) (SubscriptionPlan, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validSubscriptionPlans {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription plan %q", value)
}
