package memberships

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/outbox"
	"github.com/kitlyhq/kitly-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ChangeInput captures a seat-affecting membership write.
type ChangeInput struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     string
	Status   enums.MembershipStatus
}

// ServiceParams wire the membership service.
type ServiceParams struct {
	DB     txRunner
	Repo   Repository
	Ledger *entitlements.Ledger
	Outbox *outbox.Service
	Logger *logger.Logger
}

// Service applies membership changes. Seat changes alter effective
// entitlements, so every write bumps the tenant version and emits a
// MembershipChanged event in the same transaction.
type Service struct {
	db     txRunner
	repo   Repository
	ledger *entitlements.Ledger
	outbox *outbox.Service
	logg   *logger.Logger
}

// NewService builds the membership service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		db:     params.DB,
		repo:   params.Repo,
		ledger: params.Ledger,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

// Apply upserts the membership row and performs the version bump plus outbox
// emit atomically with it.
func (s *Service) Apply(ctx context.Context, input ChangeInput) (*models.Membership, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid membership status")
	}
	role := input.Role
	if role == "" {
		role = "member"
	}

	var result *models.Membership
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		membership, err := repo.FindByTenantAndUser(ctx, input.TenantID, input.UserID)
		if err != nil {
			return err
		}
		if membership == nil {
			membership = &models.Membership{
				ID:       uuid.New(),
				TenantID: input.TenantID,
				UserID:   input.UserID,
				Role:     role,
				Status:   input.Status,
			}
			if err := repo.Create(ctx, membership); err != nil {
				return err
			}
		} else {
			membership.Role = role
			membership.Status = input.Status
			if err := repo.Update(ctx, membership); err != nil {
				return err
			}
		}
		result = membership

		if _, err := s.ledger.WithTx(tx).Bump(ctx, input.TenantID); err != nil {
			return err
		}

		activeSeats, err := repo.CountActive(ctx, input.TenantID)
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMembershipChanged,
			AggregateType: enums.AggregateMembership,
			AggregateID:   membership.ID,
			Version:       1,
			Data: payloads.MembershipChangedEvent{
				TenantID:    input.TenantID,
				UserID:      input.UserID,
				Role:        role,
				Status:      input.Status,
				ActiveSeats: int(activeSeats),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id": input.TenantID.String(),
		"user_id":   input.UserID.String(),
		"status":    input.Status,
	})
	s.logg.Info(logCtx, "membership change applied")
	return result, nil
}
