package mcp

import (
	"context"

	"actionbroker/internal/broker"
)

// credentialsKey is the context key for per-request forwarding credentials.
type credentialsKey struct{}

// WithCredentials returns a new context carrying the caller's raw credential
// headers. The HTTP handler attaches them before delegating to the MCP
// server; tool handlers read them back for host-app forwarding.
func WithCredentials(ctx context.Context, creds broker.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFromContext extracts forwarding credentials from the context.
func CredentialsFromContext(ctx context.Context) (broker.Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(broker.Credentials)
	return creds, ok
}
