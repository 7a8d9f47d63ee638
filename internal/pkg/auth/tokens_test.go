package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMagicToken(t *testing.T) {
	a, err := NewMagicToken()
	require.NoError(t, err)
	b, err := NewMagicToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 40)
	// url-safe: nothing that needs escaping in a query string
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, "=")
}

func TestHashMagicToken(t *testing.T) {
	h1 := HashMagicToken("tok-1")
	h2 := HashMagicToken("tok-1")
	h3 := HashMagicToken("tok-2")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.NotContains(t, h1, "tok-1")
}

func TestHashMagicTokenPepper(t *testing.T) {
	before := HashMagicToken("tok")
	t.Setenv("MAGIC_LINK_PEPPER", "another-pepper")
	assert.NotEqual(t, before, HashMagicToken("tok"))
}

func TestMagicLinkExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(15*time.Minute), MagicLinkExpiry(now))

	t.Setenv("MAGIC_LINK_EXPIRES_MINUTES", "5")
	assert.Equal(t, now.Add(5*time.Minute), MagicLinkExpiry(now))
}

func TestAccessTokenRoundtrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	userID := uuid.New()
	token, err := IssueAccessToken(userID)
	require.NoError(t, err)

	parsed, err := ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	_, err := ParseAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-a")
	token, err := IssueAccessToken(uuid.New())
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "secret-b")
	_, err = ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsWrongAudience(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_AUDIENCE", "some-other-service")
	token, err := IssueAccessToken(uuid.New())
	require.NoError(t, err)

	t.Setenv("JWT_AUDIENCE", "teamdesk-api")
	_, err = ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
