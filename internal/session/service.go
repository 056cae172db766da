package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/internal/memberships"
	"github.com/kitlyhq/kitly-backend/pkg/auth"
	"github.com/kitlyhq/kitly-backend/pkg/config"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

// ServiceParams wire the session refresh service.
type ServiceParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Ledger      *entitlements.Ledger
	Memberships memberships.Repository
}

// Service reissues access tokens with the tenant's current entitlement
// version. Middleware rejects tokens whose ent_v lags the ledger, and
// this is the path that brings a client back in sync.
type Service struct {
	cfg         *config.Config
	logg        *logger.Logger
	ledger      *entitlements.Ledger
	memberships memberships.Repository
}

// NewService builds the session service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "config required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement ledger required")
	}
	if params.Memberships == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership repository required")
	}
	return &Service{
		cfg:         params.Config,
		logg:        params.Logger,
		ledger:      params.Ledger,
		memberships: params.Memberships,
	}, nil
}

// RefreshResult carries the reissued token and the claims it encodes.
type RefreshResult struct {
	Token     string
	Claims    auth.AccessTokenPayload
	ExpiresIn time.Duration
}

// Refresh validates the presented token's signature, allowing an expired
// exp claim, and mints a replacement stamped with the ledger's current
// version for the token's tenant.
func (s *Service) Refresh(ctx context.Context, tokenString string) (*RefreshResult, error) {
	claims, err := auth.ParseAccessTokenAllowExpired(s.cfg.JWT, tokenString)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	if claims.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token carries no user")
	}

	var version int64
	if claims.TenantID != nil {
		membership, err := s.memberships.FindByTenantAndUser(ctx, *claims.TenantID, claims.UserID)
		if err != nil {
			return nil, err
		}
		if membership == nil || membership.Status != enums.MembershipStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "membership is not active")
		}
		version, err = s.ledger.CurrentVersion(ctx, *claims.TenantID)
		if err != nil {
			return nil, err
		}
	}

	payload := auth.AccessTokenPayload{
		UserID:             claims.UserID,
		TenantID:           claims.TenantID,
		Role:               claims.Role,
		EntitlementVersion: version,
		JTI:                uuid.NewString(),
	}
	token, err := auth.MintAccessToken(s.cfg.JWT, time.Now().UTC(), payload)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithField(ctx, "user_id", claims.UserID.String())
	if claims.TenantID != nil {
		logCtx = s.logg.WithTenantID(logCtx, claims.TenantID.String())
	}
	s.logg.Info(logCtx, "access token refreshed")

	return &RefreshResult{
		Token:     token,
		Claims:    payload,
		ExpiresIn: s.cfg.JWT.TokenTTL(),
	}, nil
}
