// Package contextKey defines the typed keys under which request-scoped
// values are stored in a request's context.
package contextKey

type key string

// UserIDKey holds the authenticated user's ID, injected by the JWT
// middleware.
const UserIDKey = key("userID")

// JwtErrorKey holds the JWT parsing error, if any, so handlers can
// distinguish a missing token from an invalid one.
const JwtErrorKey = key("jwtError")
