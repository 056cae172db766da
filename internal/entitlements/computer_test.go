package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/subscriptions"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
)

type fixedSeatCounter struct {
	seats int64
}

func (f fixedSeatCounter) CountActive(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return f.seats, nil
}

func newTestComputer(t *testing.T, db *gorm.DB, seats int64) *Computer {
	t.Helper()

	computer, err := NewComputer(ComputerParams{
		Catalog:       NewCatalog(),
		Subscriptions: subscriptions.NewRepository(db),
		Overrides:     NewOverrideRepository(db),
		Ledger:        newTestLedger(t, db),
		Seats:         fixedSeatCounter{seats: seats},
	})
	require.NoError(t, err)
	return computer
}

func newSubscription(t *testing.T, db *gorm.DB, tenantID uuid.UUID, plan enums.SubscriptionPlan, status enums.SubscriptionStatus, maxSeats int) *models.Subscription {
	t.Helper()

	stripeID := "sub_" + uuid.NewString()
	sub := &models.Subscription{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		StripeSubscriptionID: &stripeID,
		Plan:                 plan,
		Status:               status,
		MaxSeats:             maxSeats,
		StartsAt:             time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func itemsByKey(resolved *Resolved) map[string]Item {
	out := make(map[string]Item, len(resolved.Items))
	for _, item := range resolved.Items {
		out[item.Key] = item
	}
	return out
}

func TestComputerMergesPlanDefaults(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	computer := newTestComputer(t, db, 4)
	ctx := context.Background()

	tenantID := uuid.New()
	newSubscription(t, db, tenantID, enums.SubscriptionPlanBusiness, enums.SubscriptionStatusActive, 10)

	resolved, err := computer.Compute(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionPlanBusiness, resolved.PlanCode)
	assert.Equal(t, 10, resolved.SeatsQuantity)
	assert.Equal(t, 4, resolved.ActiveSeats)
	assert.Equal(t, int64(1), resolved.EntitlementVersion)

	items := itemsByKey(resolved)
	require.Len(t, items, 3)
	assert.Equal(t, SourcePlan, items[FeatureAIAssistant].Source)
	assert.Equal(t, "true", items[FeatureAIAssistant].Value)
	assert.Equal(t, "50", items[FeatureProjects].Value)
}

func TestComputerOverrideWinsOverPlanDefault(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	computer := newTestComputer(t, db, 1)
	ctx := context.Background()

	tenantID := uuid.New()
	newSubscription(t, db, tenantID, enums.SubscriptionPlanStarter, enums.SubscriptionStatusActive, 1)

	unlimited := models.UnlimitedValue
	require.NoError(t, db.Create(&models.Entitlement{
		ID:          uuid.New(),
		TenantID:    tenantID,
		FeatureKey:  FeatureProjects,
		FeatureType: enums.FeatureTypeLimit,
		LimitValue:  &unlimited,
		Enabled:     true,
	}).Error)

	resolved, err := computer.Compute(ctx, tenantID)
	require.NoError(t, err)

	items := itemsByKey(resolved)
	assert.Equal(t, SourceOverride, items[FeatureProjects].Source)
	assert.Equal(t, "unlimited", items[FeatureProjects].Value)
	assert.Equal(t, SourcePlan, items[FeatureAIAssistant].Source, "untouched keys keep plan values")
}

func TestComputerIgnoresDisabledOverrides(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	computer := newTestComputer(t, db, 1)
	ctx := context.Background()

	tenantID := uuid.New()
	newSubscription(t, db, tenantID, enums.SubscriptionPlanStarter, enums.SubscriptionStatusActive, 1)

	limit := int64(500)
	require.NoError(t, db.Create(&models.Entitlement{
		ID:          uuid.New(),
		TenantID:    tenantID,
		FeatureKey:  FeatureProjects,
		FeatureType: enums.FeatureTypeLimit,
		LimitValue:  &limit,
		Enabled:     false,
	}).Error)

	resolved, err := computer.Compute(ctx, tenantID)
	require.NoError(t, err)

	items := itemsByKey(resolved)
	assert.Equal(t, SourcePlan, items[FeatureProjects].Source)
	assert.Equal(t, "3", items[FeatureProjects].Value)
}

func TestComputerTrialingCountsAsEntitled(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	computer := newTestComputer(t, db, 1)
	ctx := context.Background()

	tenantID := uuid.New()
	newSubscription(t, db, tenantID, enums.SubscriptionPlanStarter, enums.SubscriptionStatusTrialing, 1)

	resolved, err := computer.Compute(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusTrialing, resolved.Status)
}

func TestComputerNotFoundWithoutEntitledSubscription(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	computer := newTestComputer(t, db, 1)
	ctx := context.Background()

	_, err := computer.Compute(ctx, uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	tenantID := uuid.New()
	newSubscription(t, db, tenantID, enums.SubscriptionPlanStarter, enums.SubscriptionStatusCancelled, 1)

	_, err = computer.Compute(ctx, tenantID)
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
