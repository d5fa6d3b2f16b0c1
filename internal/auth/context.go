// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithOwner/OwnerFromContext for propagating the caller via context

package auth

import "context"

// ownerContextKey is the key type for storing the owner id in context.Context.
type ownerContextKey struct{}

// WithOwner returns a new context carrying the authenticated owner id.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, ownerID)
}

// OwnerFromContext retrieves the authenticated owner id, returning "" if
// the request was not authenticated.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey{}).(string)
	return owner
}

// MustOwnerFromContext retrieves the owner id, panicking if not present.
// Use only behind the authentication middleware.
func MustOwnerFromContext(ctx context.Context) string {
	owner := OwnerFromContext(ctx)
	if owner == "" {
		panic("auth: owner not found in context")
	}
	return owner
}
