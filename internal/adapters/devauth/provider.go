package devauth

// Package devauth provides a header-driven Authenticator for local development.

import (
	"context"
	"fmt"
	"strings"

	domainauth "github.com/target/hpcjobs/internal/domain/auth"
	"github.com/target/hpcjobs/internal/ports"
)

// Config controls the dev authenticator behavior.
type Config struct {
	// DefaultUserID is used when the request has no X-User-ID header. Empty means the header is required.
	DefaultUserID string
}

// Provider implements ports.Authenticator by trusting the X-User-ID header.
type Provider struct {
	defaultUserID string
}

var _ ports.Authenticator = (*Provider)(nil)

// NewProvider constructs a dev authenticator from Config.
func NewProvider(cfg Config) *Provider {
	return &Provider{defaultUserID: strings.TrimSpace(cfg.DefaultUserID)}
}

// Authenticate returns the header user, falling back to the configured default.
func (p *Provider) Authenticate(_ context.Context, creds ports.Credentials) (domainauth.Identity, error) {
	userID := strings.TrimSpace(creds.UserHeader)
	if userID == "" {
		userID = p.defaultUserID
	}
	if userID == "" {
		return domainauth.Identity{}, fmt.Errorf("%w: X-User-ID header is required", domainauth.ErrUnauthenticated)
	}
	return domainauth.Identity{UserID: userID}, nil
}
