// Package cli implements the gophvault command-line client on top of cobra.
//
// Commands talk to the server through client.Client and keep the session
// assertion in a file managed by session.Store, so a login survives between
// invocations. Renewed assertions returned by the server are written back
// after every command.
package cli
