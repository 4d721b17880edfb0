package auth

import "context"

// identityKey is the context key for per-request caller identity.
type identityKey struct{}

// Identity holds the validated caller identity for a request.
// It is attached to the request context by the extractor and consumed
// by handlers for logging and by the broker for credential forwarding.
type Identity struct {
	UserID string
	Email  string
	Roles  []string
}

// WithIdentity returns a new context with the given Identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the Identity from the context, if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
