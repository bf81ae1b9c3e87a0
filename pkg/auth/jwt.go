// Package auth validates bearer tokens for the HTTP transport. Keys
// come from the identity provider's JWKS endpoint and are cached with
// auto-refresh, so key rotation needs no restart.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// jwksRefreshInterval floors how often the key set is re-fetched.
const jwksRefreshInterval = 15 * time.Minute

// JWTValidator verifies token signatures against a cached JWKS and
// checks issuer and audience when configured.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// Claims is the identity attached to an authenticated request. Scopes
// carry the caller's granted permissions (for example "haystack:read",
// "haystack:write"); Extra holds any remaining private claims.
type Claims struct {
	Subject string
	Email   string
	Scopes  []string
	Extra   map[string]any
}

// HasScope reports whether the token granted the given scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// NewJWTValidator fetches the JWKS once to validate the configuration
// and keeps it refreshed in the background. Empty issuer or audience
// disables that check.
func NewJWTValidator(jwksURL, issuer, audience string) (*JWTValidator, error) {
	ctx := context.Background()
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(jwksRefreshInterval)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	return &JWTValidator{
		jwksURL:  jwksURL,
		cache:    cache,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// ValidateToken verifies the signature, expiry, and the configured
// issuer and audience, then extracts the claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, raw string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{jwt.WithKeySet(keyset), jwt.WithValidate(true)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims := &Claims{
		Subject: token.Subject(),
		Extra:   map[string]any{},
	}
	for key, value := range token.PrivateClaims() {
		switch key {
		case "email":
			claims.Email, _ = value.(string)
		case "scope", "scopes":
			claims.Scopes = append(claims.Scopes, parseScopes(value)...)
		default:
			claims.Extra[key] = value
		}
	}
	return claims, nil
}

// parseScopes accepts both encodings providers use: a space-delimited
// "scope" string (OAuth2) or a "scopes" array.
func parseScopes(value any) []string {
	switch v := value.(type) {
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
