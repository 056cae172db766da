package inbox

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	dbpkg "github.com/kitlyhq/kitly-backend/pkg/db"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

// Store is the idempotent entry point for inbound provider events. The
// (provider, event id) pair is the idempotency key; storing the same pair
// twice returns the first row untouched.
type Store struct {
	repo Repository
	logg *logger.Logger
}

// NewStore builds the inbox store.
func NewStore(repo Repository, logg *logger.Logger) (*Store, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inbox repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Store{repo: repo, logg: logg}, nil
}

// Store persists the event as pending, or returns the existing row for a
// duplicate delivery. The returned bool reports whether a new row was
// created. Two concurrent first deliveries race on the unique constraint;
// the loser re-reads and returns the winner's row.
func (s *Store) Store(ctx context.Context, provider, eventID, eventType string, payload json.RawMessage) (*models.InboundEvent, bool, error) {
	if provider == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "provider is required")
	}
	if eventID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if eventType == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "event type is required")
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	existing, err := s.repo.FindByProviderAndEventID(ctx, provider, eventID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	event := &models.InboundEvent{
		ID:        uuid.New(),
		Provider:  provider,
		EventID:   eventID,
		EventType: eventType,
		Payload:   payload,
		Status:    enums.EventStatusPending,
	}
	if err := s.repo.Insert(ctx, event); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_inbound_events_provider_event") {
			winner, findErr := s.repo.FindByProviderAndEventID(ctx, provider, eventID)
			if findErr != nil {
				return nil, false, findErr
			}
			if winner == nil {
				return nil, false, pkgerrors.New(pkgerrors.CodeInternal, "inbound event vanished after conflict")
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"provider":   provider,
		"event_id":   eventID,
		"event_type": eventType,
	})
	s.logg.Info(logCtx, "inbound event stored")
	return event, true, nil
}
