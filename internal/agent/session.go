package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"gatepass/internal/config"
	"gatepass/internal/mcpclient"
	"gatepass/internal/oauth"
	pkgoauth "gatepass/pkg/oauth"
)

// Session binds one configured server to an MCP client and the
// authorization manager. It is the single object the interactive
// commands operate on: tool calls connect on demand, and the
// authorization lifecycle goes through the same manager the CLI uses,
// so tokens obtained here are visible to `auth status` and vice versa.
type Session struct {
	spec    config.ServerSpec
	manager *oauth.Manager
	tokens  *oauth.TokenStore
	logger  *Logger

	mu         sync.RWMutex
	client     *mcpclient.Client
	toolCache  []mcp.Tool
	authFailed bool
}

// SessionConfig configures a session.
type SessionConfig struct {
	// Spec declares the server the session is bound to. Required.
	Spec config.ServerSpec

	// Manager drives the authorization flows. Required.
	Manager *oauth.Manager

	// TokenStore persists tokens; the MCP transport reads from it on
	// every request. Required.
	TokenStore *oauth.TokenStore

	// Logger defaults to a discarding logger.
	Logger *Logger

	// ClientVersion is reported in the MCP handshake.
	ClientVersion string
}

// NewSession creates a session for one server. Servers with a
// pre-issued bearer token connect with a static Authorization header;
// everything else reads tokens from the store.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = NewDevNullLogger()
	}

	clientCfg := mcpclient.Config{
		ServerID:      cfg.Spec.ID,
		URL:           cfg.Spec.URL,
		Headers:       cfg.Spec.Headers,
		ClientVersion: cfg.ClientVersion,
	}
	if bearer := cfg.Spec.Auth.ResolveBearerToken(); bearer != "" {
		clientCfg.BearerToken = bearer
	} else {
		clientCfg.TokenStore = oauth.NewMCPTokenStore(cfg.TokenStore, cfg.Spec.URL)
		if cfg.Spec.Auth != nil {
			clientCfg.Scopes = cfg.Spec.Auth.Scopes
		}
	}

	return &Session{
		spec:    cfg.Spec,
		manager: cfg.Manager,
		tokens:  cfg.TokenStore,
		logger:  logger,
		client:  mcpclient.New(clientCfg),
	}
}

// ServerID returns the configured server id.
func (s *Session) ServerID() string {
	return s.spec.ID
}

// ServerURL returns the server's MCP endpoint.
func (s *Session) ServerURL() string {
	return s.spec.URL
}

// DisplayName returns the server's display name.
func (s *Session) DisplayName() string {
	return s.spec.DisplayName()
}

// Connect establishes the MCP connection. An expired stored token is
// refreshed first when a refresh token is on record, so the transport
// reads fresh credentials from the store. It records whether the
// failure was an authentication demand so the prompt can reflect it.
func (s *Session) Connect(ctx context.Context) error {
	if !s.UsesStaticBearer() {
		if _, err := s.manager.RefreshIfNeeded(ctx, s.spec.URL); err != nil {
			s.logger.Debug("Token refresh failed: %v", err)
		}
	}

	err := s.client.Connect(ctx)

	var authErr *mcpclient.AuthRequiredError
	s.mu.Lock()
	s.authFailed = errors.As(err, &authErr)
	s.mu.Unlock()

	return err
}

// Connected reports whether the MCP connection is established.
func (s *Session) Connected() bool {
	return s.client.IsConnected()
}

// ServerInfo returns the connected server's reported name and version.
func (s *Session) ServerInfo() (string, string) {
	return s.client.ServerInfo()
}

// Reconnect tears down the connection and establishes a fresh one,
// picking up whatever credentials are now stored. The tool cache is
// dropped since the new identity may see a different tool set.
func (s *Session) Reconnect(ctx context.Context) error {
	if err := s.client.Close(); err != nil {
		s.logger.Debug("Close before reconnect failed: %v", err)
	}

	s.mu.Lock()
	s.toolCache = nil
	s.mu.Unlock()

	return s.Connect(ctx)
}

// Close shuts down the MCP connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// Tools returns the server's tools, connecting first when needed. The
// result is cached for tab completion; Reconnect and Logout drop it.
func (s *Session) Tools(ctx context.Context) ([]mcp.Tool, error) {
	if !s.client.IsConnected() {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	tools, err := s.client.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.toolCache = tools
	s.mu.Unlock()

	return tools, nil
}

// CachedTools returns the cached tool list without touching the network.
func (s *Session) CachedTools() []mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]mcp.Tool, len(s.toolCache))
	copy(tools, s.toolCache)
	return tools
}

// CallTool executes a tool, connecting first when needed.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if !s.client.IsConnected() {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return s.client.CallTool(ctx, name, args)
}

// UsesStaticBearer reports whether the server is configured with a
// pre-issued bearer token, which bypasses the OAuth flow entirely.
func (s *Session) UsesStaticBearer() bool {
	return s.spec.Auth.ResolveBearerToken() != ""
}

// StartLogin prepares an authorization flow for the bound server.
func (s *Session) StartLogin(ctx context.Context) (*pkgoauth.PreparedFlow, error) {
	return s.manager.StartLogin(ctx, s.spec.ID, s.spec.URL, s.spec.FlowConfig())
}

// WaitForCallback waits for the loopback redirect of the pending flow
// and exchanges the code.
func (s *Session) WaitForCallback(ctx context.Context, timeout time.Duration) (*pkgoauth.Token, error) {
	return s.manager.WaitForCallback(ctx, s.spec.ID, s.spec.URL, timeout)
}

// CompleteWithInput finishes the pending flow from a pasted redirect URL
// or bare code.
func (s *Session) CompleteWithInput(ctx context.Context, input string) (*pkgoauth.Token, error) {
	return s.manager.CompleteWithInput(ctx, s.spec.ID, s.spec.URL, input)
}

// HasPendingFlow reports whether a login flow awaits completion.
func (s *Session) HasPendingFlow() bool {
	return s.manager.HasPending(s.spec.ID)
}

// Token returns the stored token for the bound server, expired or not.
func (s *Session) Token() *oauth.StoredToken {
	return s.manager.Token(s.spec.URL)
}

// Logout deletes the stored token and drops the connection, since the
// transport would keep using the credentials it negotiated.
func (s *Session) Logout() error {
	if err := s.client.Close(); err != nil {
		s.logger.Debug("Close on logout failed: %v", err)
	}

	s.mu.Lock()
	s.toolCache = nil
	s.mu.Unlock()

	return s.manager.Logout(s.spec.URL)
}

// OpenBrowser opens the system browser at the given URL.
func (s *Session) OpenBrowser(url string) error {
	return oauth.OpenBrowser(url)
}

// AuthRequired reports whether the server demanded authentication the
// session cannot currently satisfy. It heals itself when a valid token
// shows up in the store, such as after a parallel `auth login`.
func (s *Session) AuthRequired() bool {
	s.mu.RLock()
	failed := s.authFailed
	s.mu.RUnlock()

	if !failed || s.UsesStaticBearer() {
		return false
	}
	return !s.tokens.HasValidToken(s.spec.URL)
}

// WatchDir returns the directory a credential watcher should observe,
// or empty when tokens are not persisted to disk.
func (s *Session) WatchDir() string {
	if s.tokens == nil || !s.tokens.Persistent() {
		return ""
	}
	return s.tokens.Dir()
}

// DropTokenCache discards the token store's in-memory cache so the next
// read picks up files written by other processes.
func (s *Session) DropTokenCache() {
	s.tokens.DropCache()
}
