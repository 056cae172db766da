package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/api/responses"
	"github.com/kitlyhq/kitly-backend/api/validators"
	"github.com/kitlyhq/kitly-backend/internal/memberships"
	"github.com/kitlyhq/kitly-backend/internal/tenants"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

type membershipApplier interface {
	Apply(ctx context.Context, input memberships.ChangeInput) (*models.Membership, error)
}

type createTenantRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Slug        string `json:"slug" validate:"required,min=2,max=64"`
	OwnerUserID string `json:"ownerUserId" validate:"required,uuid4"`
}

type tenantResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// CreateTenant provisions a tenant with its owner membership. The
// membership write goes through the membership service so the ledger
// bump and outbox emit happen like any other seat change.
func CreateTenant(repo tenants.Repository, membershipSvc membershipApplier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createTenantRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ownerID, err := uuid.Parse(req.OwnerUserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner user id"))
			return
		}

		existing, err := repo.FindBySlug(ctx, req.Slug)
		if err != nil {
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		if existing != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use"))
			return
		}

		tenant := &models.Tenant{
			ID:   uuid.New(),
			Name: req.Name,
			Slug: req.Slug,
		}
		if err := repo.Create(ctx, tenant); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if _, err := membershipSvc.Apply(ctx, memberships.ChangeInput{
			TenantID: tenant.ID,
			UserID:   ownerID,
			Role:     "owner",
			Status:   enums.MembershipStatusActive,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, tenantResponse{
			ID:   tenant.ID,
			Name: tenant.Name,
			Slug: tenant.Slug,
		})
	}
}
