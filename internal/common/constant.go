// Package common contains shared constants, sentinel errors and small helpers
// used across trackkeeper components.
package common

// AuthorizationHeaderName is the gRPC metadata key that carries the access
// token as "Bearer <jwt>".
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the access token in AuthorizationHeaderName.
const BearerPrefix = "Bearer "
