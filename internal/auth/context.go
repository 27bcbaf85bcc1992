package auth

import "context"

type contextKey struct{}

// Principal identifies the authenticated user for the duration of a request.
// Engine operations take it explicitly; nothing reads it from globals.
type Principal struct {
	UserID    int64
	Role      string
	SessionID int64
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

func UserID(ctx context.Context) int64 {
	p, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return p.UserID
}

func IsParent(ctx context.Context) bool {
	p, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return p.Role == "parent"
}
