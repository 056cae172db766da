package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/api/responses"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/pagination"
)

type inboxLister interface {
	List(ctx context.Context, status *enums.EventStatus, cursor *pagination.Cursor, limit int) ([]models.InboundEvent, error)
}

type inboundEventResponse struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	EventID      string    `json:"eventId"`
	EventType    string    `json:"eventType"`
	Status       string    `json:"status"`
	RetryCount   int       `json:"retryCount"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type inboxListResponse struct {
	Events     []inboundEventResponse `json:"events"`
	NextCursor *string                `json:"nextCursor,omitempty"`
}

// ListInboundEvents pages through stored webhook events, newest first,
// optionally filtered by status.
func ListInboundEvents(repo inboxLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var status *enums.EventStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseEventStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		limit := pagination.DefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid limit"))
				return
			}
			limit = pagination.NormalizeLimit(parsed)
		}

		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		events, err := repo.List(ctx, status, cursor, limit+1)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var nextCursor *string
		if len(events) > limit {
			events = events[:limit]
			last := events[len(events)-1]
			encoded := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			nextCursor = &encoded
		}

		out := make([]inboundEventResponse, 0, len(events))
		for _, event := range events {
			out = append(out, inboundEventResponse{
				ID:           event.ID,
				Provider:     event.Provider,
				EventID:      event.EventID,
				EventType:    event.EventType,
				Status:       string(event.Status),
				RetryCount:   event.RetryCount,
				ErrorMessage: event.ErrorMessage,
				CreatedAt:    event.CreatedAt,
			})
		}

		responses.WriteSuccess(w, inboxListResponse{Events: out, NextCursor: nextCursor})
	}
}
