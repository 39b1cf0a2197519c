package ports

// Package ports defines interfaces (hexagonal ports) for caller identity.
// Implementations live in internal/adapters; the HTTP middleware consumes them.

import (
	"context"

	domainauth "github.com/target/hpcjobs/internal/domain/auth"
)

// Credentials carries what a request presented to identify its caller.
type Credentials struct {
	// BearerToken is the token from "Authorization: Bearer <token>", without the scheme.
	BearerToken string
	// UserHeader is the raw X-User-ID header value.
	UserHeader string
}

// Authenticator resolves request credentials to an identity.
// Failures wrap domainauth.ErrUnauthenticated.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (domainauth.Identity, error)
}
