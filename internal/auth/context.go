// ABOUTME: Authentication context for tracking the calling OAuth client through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
	"time"
)

// AuthContext holds the client identity extracted from a bearer token.
type AuthContext struct {
	ClientID  string
	Scope     string
	ExpiresAt time.Time
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}

// ClientIDFromContext returns the authenticated client id, or "" for anonymous callers.
func ClientIDFromContext(ctx context.Context) string {
	if auth := FromContext(ctx); auth != nil {
		return auth.ClientID
	}
	return ""
}
