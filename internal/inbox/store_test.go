package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db := setupInboxTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "inbox-test", Output: io.Discard})
	store, err := NewStore(NewRepository(db), logg)
	require.NoError(t, err)
	return store
}

func TestStoreFirstDeliveryCreatesPendingRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	event, created, err := store.Store(ctx, "stripe", "evt_1", "invoice.payment_succeeded", json.RawMessage(`{"id":"in_1"}`))
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, event)
	assert.Equal(t, "evt_1", event.EventID)
	assert.Equal(t, "stripe", event.Provider)
}

func TestStoreDuplicateDeliveryReturnsFirstRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, created, err := store.Store(ctx, "stripe", "evt_dup", "invoice.payment_succeeded", json.RawMessage(`{"id":"in_1"}`))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := store.Store(ctx, "stripe", "evt_dup", "invoice.payment_succeeded", json.RawMessage(`{"id":"in_1","replay":true}`))
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.JSONEq(t, string(first.Payload), string(second.Payload), "original payload survives a replay")
}

func TestStoreSameEventIDAcrossProvidersIsDistinct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, created, err := store.Store(ctx, "stripe", "evt_shared", "invoice.payment_succeeded", nil)
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = store.Store(ctx, "paddle", "evt_shared", "invoice.payment_succeeded", nil)
	require.NoError(t, err)
	assert.True(t, created, "providers do not share idempotency keys")
}

// raceLosingRepo simulates a concurrent first delivery winning the insert:
// the existence check misses, the insert hits the unique constraint, and
// the re-read returns the winner's row.
type raceLosingRepo struct {
	Repository
	winner  *models.InboundEvent
	finds   int
	inserts int
}

func (r *raceLosingRepo) FindByProviderAndEventID(ctx context.Context, provider, eventID string) (*models.InboundEvent, error) {
	r.finds++
	if r.finds == 1 {
		return nil, nil
	}
	return r.winner, nil
}

func (r *raceLosingRepo) Insert(ctx context.Context, event *models.InboundEvent) error {
	r.inserts++
	return errors.New("UNIQUE constraint failed: inbound_events.provider, inbound_events.event_id")
}

func TestStoreReturnsWinnerWhenInsertLosesRace(t *testing.T) {
	winner := &models.InboundEvent{
		ID:        uuid.New(),
		Provider:  "stripe",
		EventID:   "evt_race",
		EventType: "invoice.payment_succeeded",
		Payload:   json.RawMessage(`{"id":"in_1"}`),
		Status:    enums.EventStatusPending,
	}
	repo := &raceLosingRepo{winner: winner}
	logg := logger.New(logger.Options{ServiceName: "inbox-test", Output: io.Discard})
	store, err := NewStore(repo, logg)
	require.NoError(t, err)

	event, created, err := store.Store(context.Background(), "stripe", "evt_race", "invoice.payment_succeeded", json.RawMessage(`{"id":"in_1","late":true}`))
	require.NoError(t, err)
	assert.False(t, created, "the loser reports the delivery as a duplicate")
	require.NotNil(t, event)
	assert.Equal(t, winner.ID, event.ID)
	assert.JSONEq(t, string(winner.Payload), string(event.Payload), "the winner's payload is kept")
	assert.Equal(t, 1, repo.inserts, "no insert retry after the conflict")
}

func TestStoreRejectsMissingIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Store(ctx, "", "evt_1", "type", nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, _, err = store.Store(ctx, "stripe", "", "type", nil)
	require.Error(t, err)

	_, _, err = store.Store(ctx, "stripe", "evt_1", "", nil)
	require.Error(t, err)
}
