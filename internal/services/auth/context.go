package auth

import "context"

type contextKey struct{}

// Identity is the authenticated caller attached to a request context by the
// auth middleware.
type Identity struct {
	UserID int64
	SID    string
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}
