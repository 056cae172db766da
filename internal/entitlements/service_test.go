package entitlements

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/subscriptions"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newOverrideService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "entitlements-test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		DB:            gormTxRunner{db: db},
		Overrides:     NewOverrideRepository(db),
		Ledger:        newTestLedger(t, db),
		Outbox:        outbox.NewService(outbox.NewRepository(db), logg),
		Subscriptions: subscriptions.NewRepository(db),
		Logger:        logg,
	})
	require.NoError(t, err)
	return svc
}

func TestUpsertOverrideBumpsVersionAndQueuesEvent(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	svc := newOverrideService(t, db)
	ctx := context.Background()

	tenantID := uuid.New()
	newSubscription(t, db, tenantID, enums.SubscriptionPlanBusiness, enums.SubscriptionStatusActive, 5)

	row, err := svc.UpsertOverride(ctx, OverrideInput{
		TenantID:   tenantID,
		FeatureKey: FeatureAIAssistant,
		Type:       enums.FeatureTypeBoolean,
		Enabled:    true,
	})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "true", row.Value())

	var version models.EntitlementVersion
	require.NoError(t, db.Where("tenant_id = ?", tenantID).First(&version).Error)
	assert.Equal(t, int64(2), version.Version)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventEntitlementsChanged, events[0].EventType)
	assert.Equal(t, tenantID, events[0].AggregateID)
	assert.Equal(t, enums.EventStatusPending, events[0].Status)
}

func TestUpsertOverrideReplacesExistingRow(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	svc := newOverrideService(t, db)
	ctx := context.Background()

	tenantID := uuid.New()
	limit := int64(10)
	_, err := svc.UpsertOverride(ctx, OverrideInput{
		TenantID:   tenantID,
		FeatureKey: FeatureProjects,
		Type:       enums.FeatureTypeLimit,
		LimitValue: &limit,
		Enabled:    true,
	})
	require.NoError(t, err)

	raised := int64(25)
	_, err = svc.UpsertOverride(ctx, OverrideInput{
		TenantID:   tenantID,
		FeatureKey: FeatureProjects,
		Type:       enums.FeatureTypeLimit,
		LimitValue: &raised,
		Enabled:    true,
	})
	require.NoError(t, err)

	var rows []models.Entitlement
	require.NoError(t, db.Where("tenant_id = ?", tenantID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].LimitValue)
	assert.Equal(t, int64(25), *rows[0].LimitValue)

	var version models.EntitlementVersion
	require.NoError(t, db.Where("tenant_id = ?", tenantID).First(&version).Error)
	assert.Equal(t, int64(3), version.Version, "every upsert bumps")
}

func TestUpsertOverrideStoresDisabledState(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	svc := newOverrideService(t, db)
	ctx := context.Background()

	tenantID := uuid.New()
	_, err := svc.UpsertOverride(ctx, OverrideInput{
		TenantID:   tenantID,
		FeatureKey: FeatureAIAssistant,
		Type:       enums.FeatureTypeBoolean,
		Enabled:    false,
	})
	require.NoError(t, err)

	var row models.Entitlement
	require.NoError(t, db.Where("tenant_id = ? AND feature_key = ?", tenantID, FeatureAIAssistant).First(&row).Error)
	assert.False(t, row.Enabled)
}

func TestUpsertOverrideValidation(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	svc := newOverrideService(t, db)
	ctx := context.Background()

	cases := []struct {
		name  string
		input OverrideInput
	}{
		{"missing tenant", OverrideInput{FeatureKey: "k", Type: enums.FeatureTypeBoolean}},
		{"missing key", OverrideInput{TenantID: uuid.New(), Type: enums.FeatureTypeBoolean}},
		{"bad type", OverrideInput{TenantID: uuid.New(), FeatureKey: "k", Type: enums.FeatureType("weird")}},
		{"limit without value", OverrideInput{TenantID: uuid.New(), FeatureKey: "k", Type: enums.FeatureTypeLimit}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpsertOverride(ctx, tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}
