package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateParseToken(t *testing.T) {
	token, err := GenerateToken(42, "player-1", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AccountID)
	assert.Equal(t, "player-1", claims.PlayerID)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(1, "p1", "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	token, err := GenerateToken(1, "p1", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	assert.Error(t, err)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not.a.token", "secret")
	assert.Error(t, err)
}
