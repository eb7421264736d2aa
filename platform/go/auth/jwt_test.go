package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestMintAndVerifyRoundTrip(t *testing.T) {
	token, err := MintToken(testSecret, "user-123", "owner@acme.test", false, "acme", time.Hour)
	require.NoError(t, err)

	verify := HS256TokenVerifier(testSecret)
	claims, err := verify(context.Background(), token)
	require.NoError(t, err)

	creds, err := DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.Equal(t, "user-123", creds.Id)
	require.Equal(t, "owner@acme.test", creds.Email)
	require.False(t, creds.IsAdmin)
	require.NotNil(t, creds.TenantCode)
	require.Equal(t, "acme", *creds.TenantCode)
}

func TestAdminTokenOmitsTenantClaim(t *testing.T) {
	token, err := MintToken(testSecret, "ops-1", "ops@nimbuserp.com", true, "", time.Hour)
	require.NoError(t, err)

	claims, err := HS256TokenVerifier(testSecret)(context.Background(), token)
	require.NoError(t, err)

	creds, err := DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.True(t, creds.IsAdmin)
	require.Nil(t, creds.TenantCode)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	token, err := MintToken([]byte("other-secret"), "user-123", "", false, "", time.Hour)
	require.NoError(t, err)

	_, err = HS256TokenVerifier(testSecret)(context.Background(), token)
	require.Error(t, err)
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	token, err := MintToken(testSecret, "user-123", "", false, "", -time.Minute)
	require.NoError(t, err)

	_, err = HS256TokenVerifier(testSecret)(context.Background(), token)
	require.Error(t, err)
}

func TestVerifierRejectsUnsignedToken(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-123",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = HS256TokenVerifier(testSecret)(context.Background(), unsigned)
	require.Error(t, err)
}

func TestVerifierRequiresSecret(t *testing.T) {
	require.Panics(t, func() { HS256TokenVerifier(nil) })
}
