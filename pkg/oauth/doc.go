// Package oauth implements the OAuth 2.0 authorization flow for MCP
// servers that guard their endpoints with Bearer challenges.
//
// The flow is split into a preparation half and a completion half.
// Preparation resolves the canonical resource identifier, probes the
// server for a WWW-Authenticate challenge, walks the metadata discovery
// chain (RFC 9728 protected resource metadata, then RFC 8414 / OpenID
// Connect authorization server metadata), registers a client dynamically
// when none is configured (RFC 7591), and builds a PKCE-protected
// authorization URL. Completion exchanges the authorization code for a
// token, either from a loopback callback redirect or from pasted user
// input.
//
// # Core Components
//
//   - Client: drives discovery, registration, and token exchange
//   - ResourceIdentifier: canonical resource URL per RFC 8707
//   - ParseBearerChallenge: WWW-Authenticate header parsing
//   - GeneratePKCE / GenerateState: per-flow secrets (RFC 7636)
//   - PendingAuthorization: flow state spanning the browser redirect
//   - Token: token response with expiry tracking
//
// # Usage
//
//	client := oauth.NewClient(oauth.WithLogger(logger))
//	flow, err := client.PrepareFlow(ctx, serverURL, cfg)
//	// open flow.AuthorizationURL in a browser, then either wait for the
//	// loopback callback or accept pasted input:
//	token, err := client.CompleteManual(ctx, flow.Pending, input)
//
// The package stores nothing itself. Callers persist the returned Token
// and the client id attached to it, and hold PendingAuthorization values
// keyed by server for the duration of a flow.
package oauth
