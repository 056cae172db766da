package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/inbox"
	"github.com/kitlyhq/kitly-backend/pkg/config"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
)

type recordingHandler struct {
	calls int
	err   error
}

func (h *recordingHandler) Handle(ctx context.Context, tx *gorm.DB, event models.InboundEvent) error {
	h.calls++
	if h.err != nil {
		return h.err
	}
	return nil
}

// tenantWritingHandler writes a tenant row before reporting its outcome so
// tests can observe whether the surrounding transaction committed.
type tenantWritingHandler struct {
	err error
}

func (h *tenantWritingHandler) Handle(ctx context.Context, tx *gorm.DB, event models.InboundEvent) error {
	tenant := &models.Tenant{
		ID:   uuid.New(),
		Name: "Probe",
		Slug: "probe-" + uuid.NewString(),
	}
	if err := tx.Create(tenant).Error; err != nil {
		return err
	}
	return h.err
}

func newSweepService(t *testing.T, db *gorm.DB, repo inbox.Repository, registry *Registry) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Config: &config.Config{
			Inbox: config.InboxConfig{BatchSize: 10, MaxRetries: 3},
		},
		Logger:   newTestLogger(),
		DB:       gormTxRunner{db: db},
		Inbox:    repo,
		Registry: registry,
	})
	require.NoError(t, err)
	return svc
}

func insertPendingEvent(t *testing.T, db *gorm.DB, eventType string) *models.InboundEvent {
	t.Helper()

	event := &models.InboundEvent{
		ID:        uuid.New(),
		Provider:  "stripe",
		EventID:   "evt_" + uuid.NewString(),
		EventType: eventType,
		Payload:   json.RawMessage(`{}`),
		Status:    enums.EventStatusPending,
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func TestSweepOnceProcessesSupportedEvents(t *testing.T) {
	db := setupProcessorTestDB(t)
	repo := inbox.NewRepository(db)
	handler := &tenantWritingHandler{}
	registry := NewRegistry()
	registry.Register(EventTypeSubscriptionCreated, handler)
	svc := newSweepService(t, db, repo, registry)

	event := insertPendingEvent(t, db, EventTypeSubscriptionCreated)

	handled, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	stored, err := repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusProcessed, stored.Status)

	var tenantCount int64
	require.NoError(t, db.Table("tenants").Count(&tenantCount).Error)
	assert.Equal(t, int64(1), tenantCount, "handler write committed")
}

func TestSweepOnceMarksUnsupportedTypesProcessed(t *testing.T) {
	db := setupProcessorTestDB(t)
	repo := inbox.NewRepository(db)
	svc := newSweepService(t, db, repo, NewRegistry())

	event := insertPendingEvent(t, db, "charge.refunded")

	handled, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	stored, err := repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusProcessed, stored.Status, "unknown types are acknowledged, not retried")
	assert.Equal(t, 0, stored.RetryCount)
}

func TestSweepOnceFailureRollsBackAndIsolates(t *testing.T) {
	db := setupProcessorTestDB(t)
	repo := inbox.NewRepository(db)

	failing := &tenantWritingHandler{err: errors.New("handler exploded")}
	healthy := &recordingHandler{}
	registry := NewRegistry()
	registry.Register(EventTypeSubscriptionCreated, failing)
	registry.Register(EventTypeInvoicePaymentSucceeded, healthy)
	svc := newSweepService(t, db, repo, registry)

	bad := insertPendingEvent(t, db, EventTypeSubscriptionCreated)
	good := insertPendingEvent(t, db, EventTypeInvoicePaymentSucceeded)

	handled, err := svc.SweepOnce(context.Background())
	require.NoError(t, err, "one bad item never fails the sweep")
	assert.Equal(t, 2, handled)

	storedBad, err := repo.FindByID(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusFailed, storedBad.Status)
	assert.Equal(t, 1, storedBad.RetryCount)
	require.NotNil(t, storedBad.ErrorMessage)
	assert.Contains(t, *storedBad.ErrorMessage, "handler exploded")

	storedGood, err := repo.FindByID(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusProcessed, storedGood.Status)
	assert.Equal(t, 1, healthy.calls)

	var tenantCount int64
	require.NoError(t, db.Table("tenants").Count(&tenantCount).Error)
	assert.Equal(t, int64(0), tenantCount, "failed handler's writes rolled back")
}

type claimLosingRepo struct {
	inbox.Repository
}

func (r claimLosingRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func TestSweepOnceSkipsRowsClaimedElsewhere(t *testing.T) {
	db := setupProcessorTestDB(t)
	repo := claimLosingRepo{Repository: inbox.NewRepository(db)}
	handler := &recordingHandler{}
	registry := NewRegistry()
	registry.Register(EventTypeSubscriptionCreated, handler)
	svc := newSweepService(t, db, repo, registry)

	insertPendingEvent(t, db, EventTypeSubscriptionCreated)

	handled, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, handled)
	assert.Equal(t, 0, handler.calls, "lost claims never reach the handler")
}

func TestRetryOnceRespectsRetryBound(t *testing.T) {
	db := setupProcessorTestDB(t)
	repo := inbox.NewRepository(db)
	svc := newSweepService(t, db, repo, NewRegistry())

	retryable := insertPendingEvent(t, db, EventTypeSubscriptionCreated)
	require.NoError(t, db.Model(&models.InboundEvent{}).Where("id = ?", retryable.ID).
		Updates(map[string]any{"status": enums.EventStatusFailed, "retry_count": 1}).Error)

	exhausted := insertPendingEvent(t, db, EventTypeSubscriptionCreated)
	require.NoError(t, db.Model(&models.InboundEvent{}).Where("id = ?", exhausted.ID).
		Updates(map[string]any{"status": enums.EventStatusFailed, "retry_count": 3}).Error)

	reset, err := svc.RetryOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	stored, err := repo.FindByID(context.Background(), retryable.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusPending, stored.Status)

	parked, err := repo.FindByID(context.Background(), exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusFailed, parked.Status)
}

func TestSweepOnceDrainsInArrivalOrder(t *testing.T) {
	db := setupProcessorTestDB(t)
	repo := inbox.NewRepository(db)
	handler := &recordingHandler{}
	registry := NewRegistry()
	registry.Register(EventTypeSubscriptionCreated, handler)
	svc := newSweepService(t, db, repo, registry)

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		event := insertPendingEvent(t, db, EventTypeSubscriptionCreated)
		require.NoError(t, db.Model(&models.InboundEvent{}).Where("id = ?", event.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Second)).Error)
	}

	handled, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, handled)
	assert.Equal(t, 3, handler.calls)
}
