package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret")

	raw, err := m.GenerateAccessToken("user-1", "teacher", "staff")
	require.NoError(t, err)

	claims, err := m.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "teacher", claims.Username)
	assert.Equal(t, "staff", claims.Role)
	assert.Equal(t, Access, claims.TokenType)
	assert.NotEmpty(t, claims.ID, "jti required for blacklisting")
}

func TestRefreshTokenType(t *testing.T) {
	m := NewManager("test-secret")

	raw, err := m.GenerateRefreshToken("user-1", "teacher", "admin")
	require.NoError(t, err)

	claims, err := m.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, Refresh, claims.TokenType)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestValidateToken_WrongKey(t *testing.T) {
	raw, err := NewManager("key-a").GenerateAccessToken("user-1", "teacher", "staff")
	require.NoError(t, err)

	_, err = NewManager("key-b").ValidateToken(raw)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	m := NewManager("test-secret")
	_, err := m.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestTokenIDsUnique(t *testing.T) {
	m := NewManager("test-secret")

	a, _ := m.GenerateAccessToken("user-1", "teacher", "staff")
	b, _ := m.GenerateAccessToken("user-1", "teacher", "staff")

	ca, err := m.ValidateToken(a)
	require.NoError(t, err)
	cb, err := m.ValidateToken(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}
