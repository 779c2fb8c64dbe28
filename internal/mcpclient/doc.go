// Package mcpclient connects to MCP tool-servers over streamable HTTP.
//
// Each Client wraps a single server connection. Credentials come in two
// forms: a static bearer token sent on every request, or a
// transport.TokenStore that supplies stored OAuth tokens and absorbs
// refreshed ones. When the server answers the handshake with a 401 the
// client returns an AuthRequiredError so callers can direct the user to
// the login flow instead of printing a raw transport error.
package mcpclient
