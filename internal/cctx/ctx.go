package cctx

import "context"

type ContextKey string

var (
	OwnerID ContextKey = "wc:owner"
	Role    ContextKey = "wc:role"
)

// WithSession stashes the resolved session identity on the request context.
func WithSession(parent context.Context, ownerID, role string) context.Context {
	ctx := context.WithValue(parent, OwnerID, ownerID)
	return context.WithValue(ctx, Role, role)
}

// SessionFromContext returns the identity placed there by the access gateway.
func SessionFromContext(ctx context.Context) (ownerID, role string, ok bool) {
	ownerID, ok = ctx.Value(OwnerID).(string)
	if !ok {
		return
	}

	role, ok = ctx.Value(Role).(string)
	return
}
