package core

import (
	"context"

	"psyche/internal/types"
)

// Authenticator decouples the HTTP layer from the session storage mechanism,
// allowing for easy mocking in tests.
type Authenticator interface {
	// ResolveToken resolves a bearer token to the Actor that owns it.
	//
	// Returns ErrCodeAuthSessionExpired when the token maps to a session
	// that has expired or been invalidated, and ErrCodeAuthTokenInvalid
	// when the token is malformed or unknown. Clients treat 401 as a
	// signal to discard their stored session.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}
