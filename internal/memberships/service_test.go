package memberships

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/outbox"
	"github.com/kitlyhq/kitly-backend/pkg/outbox/payloads"
)

func setupMembershipsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS memberships (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'member',
  status TEXT NOT NULL DEFAULT 'invited',
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (tenant_id, user_id)
);`,
		`CREATE TABLE IF NOT EXISTS entitlement_versions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  updated_at DATETIME,
  UNIQUE (tenant_id)
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  retry_count INTEGER NOT NULL DEFAULT 0,
  error_message TEXT,
  processed_at DATETIME,
  created_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newMembershipService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "memberships-test", Output: io.Discard})
	ledger, err := entitlements.NewLedger(entitlements.NewVersionRepository(db))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		DB:     gormTxRunner{db: db},
		Repo:   NewRepository(db),
		Ledger: ledger,
		Outbox: outbox.NewService(outbox.NewRepository(db), logg),
		Logger: logg,
	})
	require.NoError(t, err)
	return svc
}

func TestApplyCreatesMembershipAndEmits(t *testing.T) {
	db := setupMembershipsTestDB(t)
	svc := newMembershipService(t, db)
	ctx := context.Background()

	tenantID := uuid.New()
	userID := uuid.New()

	membership, err := svc.Apply(ctx, ChangeInput{
		TenantID: tenantID,
		UserID:   userID,
		Role:     "admin",
		Status:   enums.MembershipStatusActive,
	})
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, "admin", membership.Role)
	assert.Equal(t, enums.MembershipStatusActive, membership.Status)

	var version models.EntitlementVersion
	require.NoError(t, db.Where("tenant_id = ?", tenantID).First(&version).Error)
	assert.Equal(t, int64(2), version.Version)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventMembershipChanged, events[0].EventType)
	assert.Equal(t, enums.AggregateMembership, events[0].AggregateType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.MembershipChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, 1, payload.ActiveSeats)
}

func TestApplySuspensionReducesActiveSeats(t *testing.T) {
	db := setupMembershipsTestDB(t)
	svc := newMembershipService(t, db)
	ctx := context.Background()

	tenantID := uuid.New()
	userID := uuid.New()

	_, err := svc.Apply(ctx, ChangeInput{
		TenantID: tenantID,
		UserID:   userID,
		Status:   enums.MembershipStatusActive,
	})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, ChangeInput{
		TenantID: tenantID,
		UserID:   userID,
		Status:   enums.MembershipStatusSuspended,
	})
	require.NoError(t, err)

	var rows []models.Membership
	require.NoError(t, db.Where("tenant_id = ?", tenantID).Find(&rows).Error)
	require.Len(t, rows, 1, "reapplying updates the same row")
	assert.Equal(t, enums.MembershipStatusSuspended, rows[0].Status)

	repo := NewRepository(db)
	seats, err := repo.CountActive(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seats)

	var version models.EntitlementVersion
	require.NoError(t, db.Where("tenant_id = ?", tenantID).First(&version).Error)
	assert.Equal(t, int64(3), version.Version)
}

func TestApplyDefaultsRole(t *testing.T) {
	db := setupMembershipsTestDB(t)
	svc := newMembershipService(t, db)

	membership, err := svc.Apply(context.Background(), ChangeInput{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Status:   enums.MembershipStatusInvited,
	})
	require.NoError(t, err)
	assert.Equal(t, "member", membership.Role)
}

func TestApplyValidation(t *testing.T) {
	db := setupMembershipsTestDB(t)
	svc := newMembershipService(t, db)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ChangeInput{UserID: uuid.New(), Status: enums.MembershipStatusActive})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.Apply(ctx, ChangeInput{TenantID: uuid.New(), Status: enums.MembershipStatusActive})
	require.Error(t, err)

	_, err = svc.Apply(ctx, ChangeInput{TenantID: uuid.New(), UserID: uuid.New(), Status: enums.MembershipStatus("odd")})
	require.Error(t, err)
}
