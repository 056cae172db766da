package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/api/middleware"
	"github.com/kitlyhq/kitly-backend/api/responses"
	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

type entitlementComputer interface {
	Compute(ctx context.Context, tenantID uuid.UUID) (*entitlements.Resolved, error)
}

// GetEntitlements returns the caller's resolved entitlement set: plan
// defaults merged with enabled overrides, stamped with the ledger version.
func GetEntitlements(computer entitlementComputer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tenantID, err := tenantIDFromRequest(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolved, err := computer.Compute(ctx, tenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, resolved)
	}
}

func tenantIDFromRequest(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.TenantIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "no tenant in session")
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id")
	}
	return tenantID, nil
}
