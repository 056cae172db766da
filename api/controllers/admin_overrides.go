package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/api/responses"
	"github.com/kitlyhq/kitly-backend/api/validators"
	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

type overrideService interface {
	UpsertOverride(ctx context.Context, input entitlements.OverrideInput) (*models.Entitlement, error)
}

type upsertOverrideRequest struct {
	TenantID   string          `json:"tenantId" validate:"required,uuid4"`
	FeatureKey string          `json:"featureKey" validate:"required,min=1,max=128"`
	Type       string          `json:"type" validate:"required,oneof=boolean limit quota"`
	LimitValue *int64          `json:"limitValue,omitempty"`
	Enabled    bool            `json:"enabled"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type overrideResponse struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenantId"`
	FeatureKey string    `json:"featureKey"`
	Type       string    `json:"type"`
	Value      string    `json:"value"`
	Enabled    bool      `json:"enabled"`
}

// UpsertOverride creates or replaces a tenant feature override. The
// ledger bump and outbox emit happen inside the service transaction.
func UpsertOverride(svc overrideService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req upsertOverrideRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id"))
			return
		}
		featureType, err := enums.ParseFeatureType(req.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid feature type"))
			return
		}

		override, err := svc.UpsertOverride(ctx, entitlements.OverrideInput{
			TenantID:   tenantID,
			FeatureKey: req.FeatureKey,
			Type:       featureType,
			LimitValue: req.LimitValue,
			Enabled:    req.Enabled,
			Metadata:   req.Metadata,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, overrideResponse{
			ID:         override.ID,
			TenantID:   override.TenantID,
			FeatureKey: override.FeatureKey,
			Type:       string(override.FeatureType),
			Value:      override.Value(),
			Enabled:    override.Enabled,
		})
	}
}
