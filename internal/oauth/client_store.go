package oauth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgoauth "gatepass/pkg/oauth"
)

// DefaultClientStorageDir is the default directory for storing cached
// client registrations, relative to the user's home directory.
const DefaultClientStorageDir = ".config/gatepass/clients"

// ClientStore caches client ids obtained through dynamic registration,
// keyed by server URL. Reusing a cached id skips re-registration on the
// next login against the same server.
//
// Only the client id is cached. Secrets obtained during registration are
// flow-scoped; confidential clients configure their secret statically.
type ClientStore struct {
	mu         sync.RWMutex
	storageDir string
	clients    map[string]*StoredClient
	fileMode   bool
}

// StoredClient is one cached registration.
type StoredClient struct {
	// ClientID is the registered client identifier.
	ClientID string `json:"client_id"`

	// ServerURL is the normalized URL of the server the registration
	// was performed for.
	ServerURL string `json:"server_url"`

	// CreatedAt is when the registration was cached.
	CreatedAt time.Time `json:"created_at"`
}

// ClientStoreConfig configures the client store.
type ClientStoreConfig struct {
	// StorageDir is the directory for storing registration files.
	// Defaults to ~/.config/gatepass/clients
	StorageDir string

	// FileMode enables file-based persistence. If false, registrations
	// are in-memory only.
	FileMode bool
}

// NewClientStore creates a new client registration store.
func NewClientStore(cfg ClientStoreConfig) (*ClientStore, error) {
	storageDir := cfg.StorageDir
	if storageDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		storageDir = filepath.Join(homeDir, DefaultClientStorageDir)
	}

	store := &ClientStore{
		storageDir: storageDir,
		clients:    make(map[string]*StoredClient),
		fileMode:   cfg.FileMode,
	}

	if cfg.FileMode {
		if err := os.MkdirAll(storageDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create client storage directory: %w", err)
		}
	}

	return store, nil
}

// Store caches a client id for a server.
func (s *ClientStore) Store(serverURL, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := pkgoauth.NormalizeServerURL(serverURL)
	stored := &StoredClient{
		ClientID:  clientID,
		ServerURL: normalized,
		CreatedAt: time.Now(),
	}

	key := s.clientKey(normalized)
	s.clients[key] = stored

	if s.fileMode {
		if err := s.writeClientFile(key, stored); err != nil {
			return fmt.Errorf("failed to persist client registration: %w", err)
		}
	}

	return nil
}

// Get returns the cached client id for a server, or empty when none is
// cached.
func (s *ClientStore) Get(serverURL string) string {
	key := s.clientKey(pkgoauth.NormalizeServerURL(serverURL))

	s.mu.RLock()
	if client, ok := s.clients[key]; ok {
		s.mu.RUnlock()
		return client.ClientID
	}
	s.mu.RUnlock()

	if !s.fileMode {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[key]; ok {
		return client.ClientID
	}

	client, err := s.readClientFile(key)
	if err != nil {
		return ""
	}
	s.clients[key] = client
	return client.ClientID
}

// Delete removes the cached registration for a server.
func (s *ClientStore) Delete(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.clientKey(pkgoauth.NormalizeServerURL(serverURL))
	delete(s.clients, key)

	if s.fileMode {
		err := os.Remove(filepath.Join(s.storageDir, key+".json"))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// clientKey generates a filesystem-safe key for a normalized server URL.
func (s *ClientStore) clientKey(serverURL string) string {
	hash := sha256.Sum256([]byte(serverURL))
	return hex.EncodeToString(hash[:16])
}

func (s *ClientStore) writeClientFile(key string, client *StoredClient) error {
	filePath := filepath.Join(s.storageDir, key+".json")

	data, err := json.MarshalIndent(client, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client registration: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write client file: %w", err)
	}

	return nil
}

func (s *ClientStore) readClientFile(key string) (*StoredClient, error) {
	filePath := filepath.Join(s.storageDir, key+".json")

	// #nosec G304 -- filePath is constructed from internal key, not user input
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var client StoredClient
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client registration: %w", err)
	}

	return &client, nil
}
