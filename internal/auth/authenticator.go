package auth

import (
	"context"
)

// Identity is the authenticated caller. Users are provisioned by an external
// identity provider; the engine only sees their stable id.
type Identity struct {
	UserID string
	Name   string
}

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different token issuers
// without changing the middleware or service layer code.
type Authenticator interface {
	// Authenticate verifies a bearer token and returns the caller it belongs to.
	Authenticate(ctx context.Context, token string) (*Identity, error)
}
