package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(42, "controller", "test-secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "controller", claims.Username)
	assert.Equal(t, "huddle", claims.Issuer)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(42, "controller", "test-secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(42, "controller", "test-secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "test-secret")
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", "test-secret")
	assert.Error(t, err)
}
