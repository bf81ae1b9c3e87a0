package auth

import (
	"context"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTokenExtractsClaims(t *testing.T) {
	s := newSigner(t)
	v := s.validator(t)
	ctx := context.Background()

	raw := s.token(t, map[string]any{
		"email": "dev@example.com",
		"scope": "haystack:read haystack:write",
		"org":   "platform",
	})

	claims, err := v.ValidateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.ElementsMatch(t, []string{"haystack:read", "haystack:write"}, claims.Scopes)
	assert.Equal(t, "platform", claims.Extra["org"])

	assert.True(t, claims.HasScope("haystack:write"))
	assert.False(t, claims.HasScope("haystack:admin"))
}

func TestValidateTokenScopesArray(t *testing.T) {
	s := newSigner(t)
	v := s.validator(t)

	raw := s.token(t, map[string]any{
		"scopes": []string{"haystack:read"},
	})

	claims, err := v.ValidateToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"haystack:read"}, claims.Scopes)
}

func TestValidateTokenRejections(t *testing.T) {
	s := newSigner(t)
	v := s.validator(t)
	ctx := context.Background()

	t.Run("expired token", func(t *testing.T) {
		raw := s.token(t, map[string]any{
			jwt.IssuedAtKey:   time.Now().Add(-2 * time.Hour),
			jwt.ExpirationKey: time.Now().Add(-time.Hour),
		})
		_, err := v.ValidateToken(ctx, raw)
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		raw := s.token(t, map[string]any{jwt.IssuerKey: "https://elsewhere.test"})
		_, err := v.ValidateToken(ctx, raw)
		require.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		raw := s.token(t, map[string]any{jwt.AudienceKey: "other-service"})
		_, err := v.ValidateToken(ctx, raw)
		require.Error(t, err)
	})

	t.Run("foreign signature", func(t *testing.T) {
		other := newSigner(t)
		raw := other.token(t, nil)
		_, err := v.ValidateToken(ctx, raw)
		require.Error(t, err)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := v.ValidateToken(ctx, "not-a-token")
		require.Error(t, err)
	})
}

func TestNewJWTValidatorUnreachableJWKS(t *testing.T) {
	_, err := NewJWTValidator("http://127.0.0.1:1/jwks.json", testIssuer, testAudience)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch JWKS")
}
