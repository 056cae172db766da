package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/kitlyhq/kitly-backend/api/responses"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

const providerStripe = "stripe"

type inboxStore interface {
	Store(ctx context.Context, provider, eventID, eventType string, payload json.RawMessage) (*models.InboundEvent, bool, error)
}

type stripeClient interface {
	SigningSecret() string
}

type receiptResponse struct {
	EventID   string `json:"eventId"`
	Duplicate bool   `json:"duplicate"`
}

// StripeWebhook verifies the signature and records the event for the
// background processor. Receipt and processing are decoupled: the
// endpoint never runs business logic, it only persists the event.
// Replays of an already stored event still get a 200 so the provider
// stops retrying.
func StripeWebhook(store inboxStore, client stripeClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inbox store unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify signature"))
			return
		}

		stored, created, err := store.Store(ctx, providerStripe, event.ID, string(event.Type), payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{
				"provider":   providerStripe,
				"event_id":   event.ID,
				"event_type": string(event.Type),
				"duplicate":  !created,
			})
			logg.Info(logCtx, "webhook event received")
		}

		responses.WriteSuccess(w, receiptResponse{
			EventID:   stored.EventID,
			Duplicate: !created,
		})
	}
}
