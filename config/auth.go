package config

import (
	"errors"
	"fmt"
	"strings"
)

// AuthMode represents how API callers are identified.
type AuthMode string

const (
	// AuthModeOIDC verifies bearer ID tokens against an OIDC issuer.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock trusts the X-User-ID header (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, mock)", v)
	}
}

// OIDCConfig contains bearer token verification settings.
type OIDCConfig struct {
	IssuerURL string `env:"ISSUER_URL"`
	ClientID  string `env:"CLIENT_ID"  envDefault:"hpcjobs"`
	// UserClaim names the token claim used as the job owner id.
	UserClaim string `env:"USER_CLAIM" envDefault:"sub"`
}

// DevAuthConfig controls the identity used when AUTH_MODE=mock and no header is sent.
type DevAuthConfig struct {
	UserID string `env:"USER_ID" envDefault:"dev-user"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity source to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	OIDC OIDCConfig `envPrefix:"AUTH_OIDC_"`

	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims values and restores defaults.
func (a *AuthConfig) Sanitize() {
	a.OIDC.IssuerURL = strings.TrimSpace(a.OIDC.IssuerURL)
	if a.OIDC.UserClaim = strings.TrimSpace(a.OIDC.UserClaim); a.OIDC.UserClaim == "" {
		a.OIDC.UserClaim = "sub"
	}
	a.DevAuth.UserID = strings.TrimSpace(a.DevAuth.UserID)
}

// Validate reports an unusable identity configuration.
func (a *AuthConfig) Validate() error {
	if a.Mode == AuthModeOIDC && a.OIDC.IssuerURL == "" {
		return errors.New("AUTH_OIDC_ISSUER_URL is required when AUTH_MODE=oidc")
	}
	return nil
}
