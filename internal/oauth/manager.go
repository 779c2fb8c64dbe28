package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgoauth "gatepass/pkg/oauth"
)

// pendingTTL bounds how long a prepared flow stays completable. Stale
// entries are pruned when the pending file is loaded.
const pendingTTL = time.Hour

// Manager owns the authorization flows for all configured servers. It
// holds pending authorizations keyed by server id, enforces the one
// pending flow per server invariant, and persists completed tokens and
// registered client ids.
type Manager struct {
	client  *pkgoauth.Client
	tokens  *TokenStore
	clients *ClientStore
	logger  *slog.Logger

	mu          sync.Mutex
	pending     map[string]*pkgoauth.PendingAuthorization
	pendingFile string
}

// ManagerConfig configures the manager.
type ManagerConfig struct {
	// Client drives discovery, registration, and token exchange.
	// Required.
	Client *pkgoauth.Client

	// TokenStore persists completed tokens. Required.
	TokenStore *TokenStore

	// ClientStore caches dynamic registrations. Required.
	ClientStore *ClientStore

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// StateDir, when set, persists pending flows across process
	// invocations so a timed-out login can be finished later with a
	// pasted code. Empty keeps pending flows in memory only.
	StateDir string
}

// NewManager creates a flow manager and loads any persisted pending
// flows that have not gone stale.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		client:  cfg.Client,
		tokens:  cfg.TokenStore,
		clients: cfg.ClientStore,
		logger:  logger,
		pending: make(map[string]*pkgoauth.PendingAuthorization),
	}

	if cfg.StateDir != "" {
		if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		m.pendingFile = filepath.Join(cfg.StateDir, "pending.json")
		m.loadPending()
	}

	return m, nil
}

// StartLogin prepares an authorization flow for a server and records it
// as the server's pending flow. Starting a new flow for the same server
// id replaces any previous pending flow; the old flow's callback, if it
// ever arrives, no longer matches and is rejected.
//
// When the flow config carries no client id, a cached registration for
// the server URL is consulted before falling back to dynamic
// registration.
func (m *Manager) StartLogin(ctx context.Context, serverID, serverURL string, flowCfg *pkgoauth.FlowConfig) (*pkgoauth.PreparedFlow, error) {
	cfg := pkgoauth.FlowConfig{}
	if flowCfg != nil {
		cfg = *flowCfg
	}
	if cfg.ClientID == "" {
		if cached := m.clients.Get(serverURL); cached != "" {
			cfg.ClientID = cached
			m.logger.Debug("Using cached client registration",
				"server", serverID,
				"client_id", cached)
		}
	}

	flow, err := m.client.PrepareFlow(ctx, serverURL, &cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.pending[serverID] = flow.Pending
	m.savePendingLocked()
	m.mu.Unlock()

	m.logger.Info("Prepared OAuth flow",
		"server", serverID,
		"flow_id", flow.Pending.FlowID,
		"redirect_uri", flow.Pending.RedirectURI)

	return flow, nil
}

// WaitForCallback runs the listener half of a pending flow: it re-binds
// the reserved port, waits for the single redirect, validates it, and
// exchanges the code.
//
// A timeout leaves the pending flow in place for manual completion. An
// error parameter, a missing code, or a state mismatch discards the
// pending flow. A failed exchange also discards it: the authorization
// code is single-use, so the flow cannot be retried.
func (m *Manager) WaitForCallback(ctx context.Context, serverID, serverURL string, timeout time.Duration) (*pkgoauth.Token, error) {
	pending := m.pendingFor(serverID)
	if pending == nil {
		return nil, &NoPendingFlowError{ServerID: serverID}
	}

	server := NewCallbackServer(pending.Port)
	if err := server.Start(ctx); err != nil {
		// The reserved port could not be re-bound. The redirect URI is
		// already fixed, so there is no recovery on a different port.
		return nil, err
	}
	defer server.Stop()

	result, err := server.WaitForCallback(ctx, timeout)
	if err != nil {
		// Timeout and cancellation leave the pending flow usable.
		return nil, err
	}

	if result.Error != "" {
		m.discardPending(serverID)
		return nil, &CallbackFailedError{Code: result.Error}
	}
	if result.Code == "" {
		m.discardPending(serverID)
		return nil, &MissingCodeError{}
	}
	if result.State != "" && result.State != pending.State {
		m.discardPending(serverID)
		return nil, &StateMismatchError{}
	}

	token, err := m.client.ExchangeCode(ctx, pending, result.Code)
	if err != nil {
		m.discardPending(serverID)
		return nil, err
	}

	m.finishFlow(serverID, serverURL, pending, token)
	return token, nil
}

// CompleteWithInput finishes a pending flow from pasted user input (a
// redirect URL or a bare code). Unparseable input leaves the pending
// flow in place so the user can paste again; a failed exchange discards
// it.
func (m *Manager) CompleteWithInput(ctx context.Context, serverID, serverURL, rawInput string) (*pkgoauth.Token, error) {
	pending := m.pendingFor(serverID)
	if pending == nil {
		return nil, &NoPendingFlowError{ServerID: serverID}
	}

	code, err := pkgoauth.ExtractAuthorizationCode(rawInput)
	if err != nil {
		return nil, err
	}

	token, err := m.client.ExchangeCode(ctx, pending, code)
	if err != nil {
		m.discardPending(serverID)
		return nil, err
	}

	m.finishFlow(serverID, serverURL, pending, token)
	return token, nil
}

// HasPending reports whether a flow is pending for the server id.
func (m *Manager) HasPending(serverID string) bool {
	return m.pendingFor(serverID) != nil
}

// Pending returns the pending flow for a server id, or nil.
func (m *Manager) Pending(serverID string) *pkgoauth.PendingAuthorization {
	return m.pendingFor(serverID)
}

// CancelPending discards the pending flow for a server id, if any.
func (m *Manager) CancelPending(serverID string) {
	m.discardPending(serverID)
}

// Token returns the stored token for a server URL, expired or not.
func (m *Manager) Token(serverURL string) *StoredToken {
	return m.tokens.Get(serverURL)
}

// Logout deletes the stored token for a server URL. The cached client
// registration is kept so the next login skips re-registration.
func (m *Manager) Logout(serverURL string) error {
	return m.tokens.Delete(serverURL)
}

// RefreshIfNeeded returns a usable stored token for a server URL,
// refreshing it first when it is expired and a refresh token plus token
// endpoint are on record. Returns nil when nothing is stored or the
// expired token cannot be refreshed.
func (m *Manager) RefreshIfNeeded(ctx context.Context, serverURL string) (*StoredToken, error) {
	stored := m.tokens.Get(serverURL)
	if stored == nil {
		return nil, nil
	}
	if !stored.IsExpired() {
		return stored, nil
	}
	if stored.RefreshToken == "" || stored.TokenEndpoint == "" {
		return nil, nil
	}

	token, err := m.client.RefreshToken(ctx, stored.TokenEndpoint, stored.ClientID, "", stored.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := m.tokens.Store(serverURL, token, stored.TokenEndpoint); err != nil {
		return nil, err
	}
	m.logger.Info("Refreshed OAuth token", "server_url", pkgoauth.NormalizeServerURL(serverURL))

	return m.tokens.Get(serverURL), nil
}

// finishFlow removes the pending flow and persists the token and the
// client id it was obtained with.
func (m *Manager) finishFlow(serverID, serverURL string, pending *pkgoauth.PendingAuthorization, token *pkgoauth.Token) {
	m.mu.Lock()
	delete(m.pending, serverID)
	m.savePendingLocked()
	m.mu.Unlock()

	if err := m.tokens.Store(serverURL, token, pending.TokenEndpoint); err != nil {
		m.logger.Warn("Failed to persist token", "server", serverID, "error", err)
	}
	if token.ClientID != "" {
		if err := m.clients.Store(serverURL, token.ClientID); err != nil {
			m.logger.Warn("Failed to persist client registration", "server", serverID, "error", err)
		}
	}

	m.logger.Info("OAuth flow complete", "server", serverID, "flow_id", pending.FlowID)
}

func (m *Manager) pendingFor(serverID string) *pkgoauth.PendingAuthorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[serverID]
}

func (m *Manager) discardPending(serverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, serverID)
	m.savePendingLocked()
}

// savePendingLocked persists the pending map. Requires m.mu held.
func (m *Manager) savePendingLocked() {
	if m.pendingFile == "" {
		return
	}

	data, err := json.MarshalIndent(m.pending, "", "  ")
	if err != nil {
		m.logger.Warn("Failed to marshal pending flows", "error", err)
		return
	}
	if err := os.WriteFile(m.pendingFile, data, 0600); err != nil {
		m.logger.Warn("Failed to persist pending flows", "error", err)
	}
}

// loadPending restores persisted pending flows, dropping stale entries.
func (m *Manager) loadPending() {
	data, err := os.ReadFile(m.pendingFile)
	if err != nil {
		return
	}

	var pending map[string]*pkgoauth.PendingAuthorization
	if err := json.Unmarshal(data, &pending); err != nil {
		m.logger.Warn("Failed to parse pending flows, discarding", "error", err)
		return
	}

	for serverID, p := range pending {
		if time.Since(p.CreatedAt) > pendingTTL {
			continue
		}
		m.pending[serverID] = p
	}
}
