// Package client talks to the trackkeeper auth server on behalf of the CLI.
//
// GRPCClient wraps the generated-by-hand api.AuthServiceClient. It keeps the
// current session in a SessionStore, attaches the access token to calls that
// need one, and when the server rejects an access token it redeems the stored
// refresh token once and retries. Server failures come back as *common.Error
// values carrying the server's message; connectivity problems as
// ErrUnavailable.
//
// OpenDatabase prepares the local SQLite file that backs the session store.
package client
