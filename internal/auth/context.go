package auth

import "context"

type contextKey struct{}

// User is the signed-in caller as asserted by the identity provider.
type User struct {
	ID    string
	Email string
	Name  string
}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok
}

// UserID returns the caller's subject, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	u, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return u.ID
}
