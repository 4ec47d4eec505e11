package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	InitJWT("test-secret", 1)

	token, err := GenerateToken(42, "listener")
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "listener", claims.Username)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	InitJWT("test-secret", 1)

	_, err := ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	InitJWT("first-secret", 1)
	token, err := GenerateToken(1, "u")
	require.NoError(t, err)

	// Reinitialization is once-only per process in production; the setter
	// here simulates a token signed elsewhere.
	jwtSecret = []byte("other-secret")
	defer func() { jwtSecret = []byte("first-secret") }()

	_, err = ParseToken(token)
	assert.Error(t, err)
}
