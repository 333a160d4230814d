package common

import "context"

// Principal identifies the shopper behind a request.
type Principal struct {
	UserID string
	Email  string
}

type principalKey struct{}

// WithPrincipal attaches the authenticated shopper to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the shopper stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, false
	}
	return p, true
}

// WithUserID attaches a principal that only carries a user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return WithPrincipal(ctx, Principal{UserID: id})
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.UserID, ok
}
