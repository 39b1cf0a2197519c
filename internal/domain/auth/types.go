package auth

// Package auth contains the domain-level identity of an API caller.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"strings"
	"time"
)

// ErrUnauthenticated reports that a request carried no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity represents the authenticated principal behind a request.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID    string // owner id stamped on jobs (token claim or dev header)
	Email     string
	ExpiresAt time.Time // zero when the source carries no expiry
}

// Valid reports whether the identity names a user.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// Expired reports whether the identity has a known expiry before now.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
