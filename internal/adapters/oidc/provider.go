package oidc

// Package oidc verifies bearer ID tokens for the hpcjobs API.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/hpcjobs/internal/domain/auth"
	"github.com/target/hpcjobs/internal/ports"
)

// DefaultUserClaim is the claim used as the user id when none is configured.
const DefaultUserClaim = "sub"

// ProviderConfig holds configuration for the OIDC token verifier.
type ProviderConfig struct {
	IssuerURL  string
	ClientID   string
	UserClaim  string       // Optional, defaults to DefaultUserClaim
	HTTPClient *http.Client // Optional, used for discovery and JWKS fetches
}

// Provider implements ports.Authenticator by verifying ID tokens with go-oidc.
type Provider struct {
	verifier  *gooidc.IDTokenVerifier
	userClaim string
}

var _ ports.Authenticator = (*Provider)(nil)

// NewProvider runs OIDC discovery against the issuer and builds a verifier for ClientID.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	issuer := strings.TrimSuffix(strings.TrimSpace(config.IssuerURL), "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	if issuer == "" {
		return nil, errors.New("issuer URL is required")
	}
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// The remote key set keeps this context for later JWKS refreshes.
	discoveryCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(discoveryCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return NewWithVerifier(op.Verifier(&gooidc.Config{ClientID: config.ClientID}), config.UserClaim), nil
}

// NewWithVerifier wraps an existing verifier, e.g. one built from static keys.
func NewWithVerifier(verifier *gooidc.IDTokenVerifier, userClaim string) *Provider {
	userClaim = strings.TrimSpace(userClaim)
	if userClaim == "" {
		userClaim = DefaultUserClaim
	}
	return &Provider{verifier: verifier, userClaim: userClaim}
}

// Authenticate verifies the bearer token and maps the configured claim to the user id.
func (p *Provider) Authenticate(ctx context.Context, creds ports.Credentials) (domainauth.Identity, error) {
	raw := strings.TrimSpace(creds.BearerToken)
	if raw == "" {
		return domainauth.Identity{}, fmt.Errorf("%w: bearer token is required", domainauth.ErrUnauthenticated)
	}

	idTok, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: verify id_token: %w", domainauth.ErrUnauthenticated, err)
	}

	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: parse id_token claims: %w", domainauth.ErrUnauthenticated, claimsErr)
	}

	userID := claimString(claims, p.userClaim)
	if userID == "" && p.userClaim == DefaultUserClaim {
		userID = idTok.Subject
	}
	if userID == "" {
		return domainauth.Identity{}, fmt.Errorf("%w: claim %q is missing", domainauth.ErrUnauthenticated, p.userClaim)
	}

	return domainauth.Identity{
		UserID:    userID,
		Email:     firstNonEmpty(claimString(claims, "email"), claimString(claims, "mail")),
		ExpiresAt: idTok.Expiry,
	}, nil
}

func claimString(claims map[string]any, name string) string {
	s, _ := claims[name].(string)
	return strings.TrimSpace(s)
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
