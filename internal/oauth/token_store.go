package oauth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgoauth "gatepass/pkg/oauth"
)

// DefaultTokenStorageDir is the default directory for storing OAuth
// tokens, relative to the user's home directory.
const DefaultTokenStorageDir = ".config/gatepass/tokens"

// TokenStore provides storage for OAuth tokens keyed by server URL.
// It supports both file-based (XDG-compliant) and in-memory storage.
//
// SECURITY: This store handles sensitive OAuth credentials. The following
// security measures are implemented:
//   - Files are created with 0600 permissions (owner read/write only)
//   - Storage directory is created with 0700 permissions (owner only)
//   - Token values are NEVER logged (only server URLs)
//
// Unlike a cache, the store keeps expired tokens: an expired entry still
// carries the refresh token and the client id from the registration that
// produced it.
type TokenStore struct {
	mu         sync.RWMutex
	storageDir string
	tokens     map[string]*StoredToken
	fileMode   bool
}

// StoredToken represents a stored OAuth token with metadata.
type StoredToken struct {
	// AccessToken is the OAuth access token.
	AccessToken string `json:"access_token"`

	// RefreshToken is the OAuth refresh token (if available).
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresAt is when the access token expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope string.
	Scope string `json:"scope,omitempty"`

	// ClientID is the client identity the token was obtained with.
	ClientID string `json:"client_id,omitempty"`

	// TokenEndpoint is where the token was obtained, kept so a refresh
	// can be attempted without rediscovering metadata.
	TokenEndpoint string `json:"token_endpoint,omitempty"`

	// ServerURL is the normalized URL of the server this token
	// authenticates to.
	ServerURL string `json:"server_url"`

	// CreatedAt is when the token was stored.
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the access token is expired or about to
// expire. Tokens without an expiry never expire.
func (t *StoredToken) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(pkgoauth.DefaultExpiryMargin).After(t.ExpiresAt)
}

// ToToken converts the stored form back to a flow token.
func (t *StoredToken) ToToken() *pkgoauth.Token {
	return &pkgoauth.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
		Scope:        t.Scope,
		ClientID:     t.ClientID,
	}
}

// TokenStoreConfig configures the token store.
type TokenStoreConfig struct {
	// StorageDir is the directory for storing token files.
	// Defaults to ~/.config/gatepass/tokens
	StorageDir string

	// FileMode enables file-based persistence. If false, tokens are
	// in-memory only.
	FileMode bool
}

// NewTokenStore creates a new token store with the specified configuration.
func NewTokenStore(cfg TokenStoreConfig) (*TokenStore, error) {
	storageDir := cfg.StorageDir
	if storageDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		storageDir = filepath.Join(homeDir, DefaultTokenStorageDir)
	}

	store := &TokenStore{
		storageDir: storageDir,
		tokens:     make(map[string]*StoredToken),
		fileMode:   cfg.FileMode,
	}

	if cfg.FileMode {
		if err := os.MkdirAll(storageDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create token storage directory: %w", err)
		}
	}

	return store, nil
}

// Store stores an OAuth token for a specific server. tokenEndpoint may
// be empty when unknown; refresh is then unavailable for this entry.
// SECURITY: Token values are never logged. Only server URLs are logged
// for audit purposes.
func (s *TokenStore) Store(serverURL string, token *pkgoauth.Token, tokenEndpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := pkgoauth.NormalizeServerURL(serverURL)
	stored := &StoredToken{
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
		TokenType:     token.TokenType,
		ExpiresAt:     token.ExpiresAt,
		Scope:         token.Scope,
		ClientID:      token.ClientID,
		TokenEndpoint: tokenEndpoint,
		ServerURL:     normalized,
		CreatedAt:     time.Now(),
	}

	key := s.tokenKey(normalized)
	s.tokens[key] = stored

	if s.fileMode {
		if err := s.writeTokenFile(key, stored); err != nil {
			slog.Warn("SECURITY_AUDIT: OAuth token storage failed",
				"event", "token_store_failed",
				"server_url", normalized,
				"error", err.Error(),
			)
			return fmt.Errorf("failed to persist token: %w", err)
		}
		slog.Info("SECURITY_AUDIT: OAuth token stored",
			"event", "token_stored",
			"server_url", normalized,
			"expires_at", stored.ExpiresAt.Format(time.RFC3339),
			"has_refresh_token", stored.RefreshToken != "",
		)
	}

	return nil
}

// Get retrieves the stored token for a specific server, expired or not.
// Returns nil when nothing is stored.
func (s *TokenStore) Get(serverURL string) *StoredToken {
	key := s.tokenKey(pkgoauth.NormalizeServerURL(serverURL))

	s.mu.RLock()
	if token, ok := s.tokens[key]; ok {
		s.mu.RUnlock()
		return token
	}
	s.mu.RUnlock()

	if !s.fileMode {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check in case another goroutine populated it
	if token, ok := s.tokens[key]; ok {
		return token
	}

	token, err := s.readTokenFile(key)
	if err != nil {
		return nil
	}
	s.tokens[key] = token
	return token
}

// HasValidToken checks if a non-expired token exists for a server.
func (s *TokenStore) HasValidToken(serverURL string) bool {
	token := s.Get(serverURL)
	return token != nil && !token.IsExpired()
}

// Dir returns the storage directory. Callers use it to watch for token
// files written by other processes.
func (s *TokenStore) Dir() string {
	return s.storageDir
}

// Persistent reports whether tokens are written to disk.
func (s *TokenStore) Persistent() bool {
	return s.fileMode
}

// DropCache discards the in-memory cache so subsequent reads hit the
// token files again. Called when a watcher reports that another process
// changed the storage directory. No-op for memory-only stores, which
// have no files to re-read.
func (s *TokenStore) DropCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fileMode {
		return
	}
	s.tokens = make(map[string]*StoredToken)
}

// Delete removes a stored token for a specific server.
// SECURITY: Logs token deletion for audit trail without logging token values.
func (s *TokenStore) Delete(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := pkgoauth.NormalizeServerURL(serverURL)
	key := s.tokenKey(normalized)
	delete(s.tokens, key)

	if s.fileMode {
		if err := s.deleteTokenFile(key); err != nil {
			slog.Warn("SECURITY_AUDIT: OAuth token deletion failed",
				"event", "token_delete_failed",
				"server_url", normalized,
				"error", err.Error(),
			)
			return err
		}
	}

	slog.Info("SECURITY_AUDIT: OAuth token deleted",
		"event", "token_deleted",
		"server_url", normalized,
	)
	return nil
}

// Clear removes all stored tokens (both in-memory and file-based).
// SECURITY: Logs bulk token clearing for audit trail.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenCount := len(s.tokens)
	s.tokens = make(map[string]*StoredToken)

	if s.fileMode {
		entries, err := os.ReadDir(s.storageDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to read token directory: %w", err)
		}

		fileCount := 0
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
				filePath := filepath.Join(s.storageDir, entry.Name())
				if err := os.Remove(filePath); err != nil {
					return fmt.Errorf("failed to remove token file %s: %w", entry.Name(), err)
				}
				fileCount++
			}
		}

		slog.Info("SECURITY_AUDIT: All OAuth tokens cleared",
			"event", "tokens_cleared",
			"memory_tokens_cleared", tokenCount,
			"file_tokens_cleared", fileCount,
		)
	}

	return nil
}

// tokenKey generates a unique key for a normalized server URL.
// Uses SHA256 hash to create filesystem-safe identifiers.
func (s *TokenStore) tokenKey(serverURL string) string {
	hash := sha256.Sum256([]byte(serverURL))
	return hex.EncodeToString(hash[:16])
}

// writeTokenFile persists a token to a JSON file.
func (s *TokenStore) writeTokenFile(key string, token *StoredToken) error {
	filePath := filepath.Join(s.storageDir, key+".json")

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// readTokenFile reads a token from a JSON file.
func (s *TokenStore) readTokenFile(key string) (*StoredToken, error) {
	filePath := filepath.Join(s.storageDir, key+".json")

	// #nosec G304 -- filePath is constructed from internal key, not user input
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

// deleteTokenFile removes a token file.
func (s *TokenStore) deleteTokenFile(key string) error {
	filePath := filepath.Join(s.storageDir, key+".json")
	err := os.Remove(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
