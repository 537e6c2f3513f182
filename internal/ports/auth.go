// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

// TokenStore persists the opaque bearer token in client-local durable storage.
// It carries no validity semantics. Get reports ok=false when no token is stored.
type TokenStore interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// IntentStore keeps the path a visitor tried to reach when access was denied.
// Take returns and removes the stored path so it is consumed at most once.
type IntentStore interface {
	Save(ctx context.Context, path string) error
	Take(ctx context.Context) (path string, ok bool, err error)
}

// TokenCodec extracts self-asserted claims from a bearer token without verifying it.
type TokenCodec interface {
	Decode(token string) (domainauth.Claims, error)
	IsExpired(token string) bool
}

// IdentityClient talks to the identity backend.
type IdentityClient interface {
	// Login authenticates with credentials and returns a bearer token.
	Login(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error)

	// FetchCurrentIdentity returns the principal the given bearer token belongs to.
	FetchCurrentIdentity(ctx context.Context, token string) (domainauth.Identity, error)

	// Logout is best effort; callers must not block local state clearing on its failure.
	Logout(ctx context.Context, token string) error
}

// Navigator moves the console to another path.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// Session is the consumer-facing view of the session controller.
// Subscribe registers fn to receive a copy of the state after every change
// and returns a function that removes it.
type Session interface {
	State() domainauth.SessionState
	Refresh(ctx context.Context) error
	Logout(ctx context.Context)
	Subscribe(fn func(domainauth.SessionState)) (unsubscribe func())
}
