package auth

import (
	"fmt"

	"github.com/Dhana009/haystack/pkg/config"
)

// NewValidatorFromConfig builds a JWT validator from the server auth
// configuration. Returns nil when authentication is disabled.
func NewValidatorFromConfig(cfg config.AuthConfig) (*JWTValidator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("auth is enabled but jwks_url is empty")
	}

	validator, err := NewJWTValidator(cfg.JWKSURL, cfg.Issuer, cfg.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT validator: %w", err)
	}
	return validator, nil
}
