package googleid

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClaims(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "accounts.google.com",
			Subject:   "1234",
			ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		},
		Email:        "alice@example.com",
		HostedDomain: "example.com",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	// Expired and unsigned, but extraction does not validate.
	parsed, err := ExtractClaims(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", parsed.Email)
	assert.Equal(t, "example.com", parsed.HostedDomain)
	assert.Equal(t, "accounts.google.com", parsed.Issuer)
	assert.True(t, parsed.ExpiresAt.Equal(now.Add(-1*time.Hour)))
	assert.True(t, parsed.IssuedAt.Equal(now.Add(-2*time.Hour)))
}

func TestExtractClaims_Malformed(t *testing.T) {
	_, err := ExtractClaims("not-a-token")
	assert.Error(t, err)
}

func TestExtractClaims_NoTimes(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Email: "bob@example.com"})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parsed, err := ExtractClaims(tokenString)
	require.NoError(t, err)
	assert.True(t, parsed.ExpiresAt.IsZero())
	assert.True(t, parsed.IssuedAt.IsZero())
}
