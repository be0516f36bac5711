// Package common contains shared constants and sentinel errors used across
// GophVault components.
package common

// AccessTokenCookieName is the HTTP cookie that carries the session assertion.
const AccessTokenCookieName = "token"

// AuthorizationHeaderName carries "Bearer <assertion>" on requests and the
// renewed assertion on responses.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the assertion in the Authorization header.
const BearerPrefix = "Bearer "
