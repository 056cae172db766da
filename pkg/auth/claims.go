package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID             uuid.UUID
	TenantID           *uuid.UUID
	Role               string
	EntitlementVersion int64
	JTI                string
}

// AccessTokenClaims represents the typed JWT issued to clients. The ent_v
// claim mirrors the tenant's ledger version at mint time so middleware can
// tell a stale token from a current one.
type AccessTokenClaims struct {
	UserID             uuid.UUID  `json:"user_id"`
	TenantID           *uuid.UUID `json:"tid,omitempty"`
	Role               string     `json:"role,omitempty"`
	EntitlementVersion int64      `json:"ent_v"`
	jwt.RegisteredClaims
}
