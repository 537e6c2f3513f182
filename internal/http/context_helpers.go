package httpx

import (
	"context"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

// identityKey is an unexported context key type to avoid collisions across packages.
type identityKey struct{}

// SetIdentityInContext returns a child context that carries id.
// If id is nil, the original ctx is returned unchanged.
func SetIdentityInContext(ctx context.Context, id *domainauth.Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity RequireSession stored for the request.
func IdentityFromContext(ctx context.Context) (*domainauth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*domainauth.Identity)
	return id, ok && id != nil
}
