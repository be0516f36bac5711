// Package client talks to the GophVault HTTP API.
//
// # Overview
//
// Client is the transport-agnostic contract used by the CLI; HTTPClient is
// the implementation over net/http. HTTPClient carries the session assertion
// as a Bearer header and picks up renewed assertions from the Authorization
// response header, so callers should persist Token() after each call.
//
// # Error Handling
//
// Non-2xx responses come back as *netx.StatusError, which unwraps to the
// common sentinels (common.ErrorUnauthorized, common.ErrorForbidden, ...).
// Transport failures are wrapped with ErrUnavailable.
package client
