package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/api/responses"
	"github.com/kitlyhq/kitly-backend/api/validators"
	"github.com/kitlyhq/kitly-backend/internal/memberships"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

type changeMembershipRequest struct {
	TenantID string `json:"tenantId" validate:"required,uuid4"`
	UserID   string `json:"userId" validate:"required,uuid4"`
	Role     string `json:"role" validate:"required,oneof=owner admin member"`
	Status   string `json:"status" validate:"required,oneof=invited active suspended removed"`
}

type membershipResponse struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`
	UserID   uuid.UUID `json:"userId"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
}

// ChangeMembership applies a seat change for a tenant member.
func ChangeMembership(svc membershipApplier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req changeMembershipRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id"))
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		status, err := enums.ParseMembershipStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		membership, err := svc.Apply(ctx, memberships.ChangeInput{
			TenantID: tenantID,
			UserID:   userID,
			Role:     req.Role,
			Status:   status,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, membershipResponse{
			ID:       membership.ID,
			TenantID: membership.TenantID,
			UserID:   membership.UserID,
			Role:     membership.Role,
			Status:   string(membership.Status),
		})
	}
}
