// Package oauth orchestrates OAuth 2.0 authorization flows for MCP
// servers and persists the results.
//
// The Manager sits on top of pkg/oauth's stateless flow logic and owns
// everything stateful: the pending authorization per server, the
// loopback callback listener, and the persisted tokens and client
// registrations.
//
// # Architecture
//
// A login runs in two halves:
//   - StartLogin prepares the flow (discovery, registration, PKCE) and
//     records the pending authorization under the server id.
//   - WaitForCallback binds the reserved port, waits for the single
//     redirect, and exchanges the code. CompleteWithInput is the manual
//     alternative that takes a pasted redirect URL or bare code.
//
// A callback timeout keeps the pending flow alive so the user can
// finish it manually; an error redirect, a state mismatch, or a failed
// exchange discards it.
//
// # Storage
//
// Tokens and registered client ids are stored per server URL under
// XDG-style directories:
//
//	~/.config/gatepass/tokens/{server-hash}.json
//	~/.config/gatepass/clients/{server-hash}.json
//
// Token files hold refresh tokens, so they are written 0600 inside
// 0700 directories and their contents are never logged. Pending flows
// are persisted too when a state directory is configured, which lets a
// one-shot CLI invocation finish a flow a previous invocation started.
//
// # Usage
//
//	mgr, err := oauth.NewManager(oauth.ManagerConfig{
//	    Client:      pkgoauth.NewClient(),
//	    TokenStore:  tokens,
//	    ClientStore: clients,
//	})
//
//	flow, err := mgr.StartLogin(ctx, "files", "https://mcp.example.com/mcp", nil)
//	// open flow.AuthorizationURL in a browser, then:
//	token, err := mgr.WaitForCallback(ctx, "files", "https://mcp.example.com/mcp", 2*time.Minute)
package oauth
