package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitlyhq/kitly-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "kitly-test",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	tenantID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{
		UserID:             userID,
		TenantID:           &tenantID,
		Role:               "admin",
		EntitlementVersion: 7,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, tenantID, *claims.TenantID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, int64(7), claims.EntitlementVersion)
	assert.Equal(t, "kitly-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID, "a jti is always assigned")
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	other := cfg
	other.Secret = "different-secret"
	_, err = ParseAccessToken(other, token)
	require.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	other := cfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	minted := time.Now().UTC().Add(-2 * time.Hour)
	token, err := MintAccessToken(cfg, minted, AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
}

func TestParseAllowExpiredAcceptsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	minted := time.Now().UTC().Add(-2 * time.Hour)
	token, err := MintAccessToken(cfg, minted, AccessTokenPayload{
		UserID:             userID,
		EntitlementVersion: 3,
	})
	require.NoError(t, err)

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, int64(3), claims.EntitlementVersion)
}

func TestParseAllowExpiredStillChecksSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	other := cfg
	other.Secret = "different-secret"
	_, err = ParseAccessTokenAllowExpired(other, token)
	require.Error(t, err)
}

func TestMintValidation(t *testing.T) {
	now := time.Now().UTC()

	cfg := testJWTConfig()
	_, err := MintAccessToken(cfg, now, AccessTokenPayload{})
	require.Error(t, err, "user id is mandatory")

	noSecret := testJWTConfig()
	noSecret.Secret = ""
	_, err = MintAccessToken(noSecret, now, AccessTokenPayload{UserID: uuid.New()})
	require.Error(t, err)

	_, err = MintAccessToken(cfg, now, AccessTokenPayload{UserID: uuid.New(), EntitlementVersion: -1})
	require.Error(t, err)
}
