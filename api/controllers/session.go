package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/kitlyhq/kitly-backend/api/responses"
	"github.com/kitlyhq/kitly-backend/internal/session"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

type sessionRefresher interface {
	Refresh(ctx context.Context, tokenString string) (*session.RefreshResult, error)
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	EntVersion  int64  `json:"entVersion"`
}

// RefreshSession reissues the caller's access token with the current
// entitlement version. The presented token may be expired; only its
// signature must verify.
func RefreshSession(svc sessionRefresher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
			raw = strings.TrimSpace(raw[7:])
		}
		if raw == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		result, err := svc.Refresh(ctx, raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, refreshResponse{
			AccessToken: result.Token,
			ExpiresIn:   int64(result.ExpiresIn.Seconds()),
			EntVersion:  result.Claims.EntitlementVersion,
		})
	}
}
