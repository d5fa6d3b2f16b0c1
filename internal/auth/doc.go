// Package auth provides JWT-based request authentication.
//
// Tokens are HS256-signed with a shared secret and carry the owner id in
// the "sub" claim. Middleware validates the bearer token on every API
// request and attaches the verified owner id to the request context, where
// handlers retrieve it with OwnerFromContext. Every downstream read and
// write is scoped to that owner; client-supplied identity is never trusted.
package auth
