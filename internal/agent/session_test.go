package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"gatepass/internal/config"
	"gatepass/internal/oauth"
	pkgoauth "gatepass/pkg/oauth"
)

// newTestSession builds a session with in-memory stores. The URL points
// at a closed port so connection attempts fail fast.
func newTestSession(t *testing.T, spec config.ServerSpec) *Session {
	t.Helper()

	tokens, err := oauth.NewTokenStore(oauth.TokenStoreConfig{FileMode: false})
	if err != nil {
		t.Fatalf("NewTokenStore: %v", err)
	}
	clients, err := oauth.NewClientStore(oauth.ClientStoreConfig{FileMode: false})
	if err != nil {
		t.Fatalf("NewClientStore: %v", err)
	}
	manager, err := oauth.NewManager(oauth.ManagerConfig{
		Client:      pkgoauth.NewClient(),
		TokenStore:  tokens,
		ClientStore: clients,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	return NewSession(SessionConfig{
		Spec:          spec,
		Manager:       manager,
		TokenStore:    tokens,
		Logger:        NewDevNullLogger(),
		ClientVersion: "test",
	})
}

func testSpec() config.ServerSpec {
	return config.ServerSpec{
		ID:  "files",
		URL: "http://127.0.0.1:1/mcp",
	}
}

func TestNewSession(t *testing.T) {
	session := newTestSession(t, testSpec())

	if session == nil {
		t.Fatal("NewSession returned nil")
	}
	if session.ServerID() != "files" {
		t.Errorf("ServerID() = %q, want %q", session.ServerID(), "files")
	}
	if session.ServerURL() != "http://127.0.0.1:1/mcp" {
		t.Errorf("ServerURL() = %q, want %q", session.ServerURL(), "http://127.0.0.1:1/mcp")
	}
	if session.Connected() {
		t.Error("new session reports connected")
	}
}

func TestSessionDisplayName(t *testing.T) {
	spec := testSpec()
	spec.Name = "File Server"
	session := newTestSession(t, spec)

	if session.DisplayName() != "File Server" {
		t.Errorf("DisplayName() = %q, want %q", session.DisplayName(), "File Server")
	}

	session = newTestSession(t, testSpec())
	if session.DisplayName() != "files" {
		t.Errorf("DisplayName() = %q, want the id fallback", session.DisplayName())
	}
}

func TestSessionUsesStaticBearer(t *testing.T) {
	spec := testSpec()
	spec.Auth = &config.AuthSpec{BearerToken: "pre-issued"}
	session := newTestSession(t, spec)

	if !session.UsesStaticBearer() {
		t.Error("UsesStaticBearer() = false with a configured bearer token")
	}

	session = newTestSession(t, testSpec())
	if session.UsesStaticBearer() {
		t.Error("UsesStaticBearer() = true without a bearer token")
	}
}

func TestSessionAuthRequired(t *testing.T) {
	session := newTestSession(t, testSpec())

	if session.AuthRequired() {
		t.Error("AuthRequired() = true before any connection attempt")
	}

	session.mu.Lock()
	session.authFailed = true
	session.mu.Unlock()

	if !session.AuthRequired() {
		t.Error("AuthRequired() = false after an auth failure with no stored token")
	}

	// A valid token appearing in the store heals the state without a
	// reconnect, such as after a login in another terminal.
	err := session.tokens.Store(session.ServerURL(), &pkgoauth.Token{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, "https://auth.example.com/token")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if session.AuthRequired() {
		t.Error("AuthRequired() = true with a valid stored token")
	}
}

func TestSessionAuthRequired_StaticBearer(t *testing.T) {
	spec := testSpec()
	spec.Auth = &config.AuthSpec{BearerToken: "pre-issued"}
	session := newTestSession(t, spec)

	session.mu.Lock()
	session.authFailed = true
	session.mu.Unlock()

	if session.AuthRequired() {
		t.Error("AuthRequired() = true for a static-bearer server; logging in cannot help")
	}
}

func TestSessionCachedToolsCopies(t *testing.T) {
	session := newTestSession(t, testSpec())

	session.mu.Lock()
	session.toolCache = []mcp.Tool{{Name: "echo"}, {Name: "search"}}
	session.mu.Unlock()

	cached := session.CachedTools()
	if len(cached) != 2 {
		t.Fatalf("CachedTools() returned %d tools, want 2", len(cached))
	}

	cached[0].Name = "mutated"

	again := session.CachedTools()
	if again[0].Name != "echo" {
		t.Error("mutating the returned slice changed the session cache")
	}
}

func TestSessionWatchDir(t *testing.T) {
	session := newTestSession(t, testSpec())
	if dir := session.WatchDir(); dir != "" {
		t.Errorf("WatchDir() = %q for a memory-only store, want empty", dir)
	}

	storageDir := t.TempDir()
	tokens, err := oauth.NewTokenStore(oauth.TokenStoreConfig{
		StorageDir: storageDir,
		FileMode:   true,
	})
	if err != nil {
		t.Fatalf("NewTokenStore: %v", err)
	}
	clients, err := oauth.NewClientStore(oauth.ClientStoreConfig{FileMode: false})
	if err != nil {
		t.Fatalf("NewClientStore: %v", err)
	}
	manager, err := oauth.NewManager(oauth.ManagerConfig{
		Client:      pkgoauth.NewClient(),
		TokenStore:  tokens,
		ClientStore: clients,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	session = NewSession(SessionConfig{
		Spec:       testSpec(),
		Manager:    manager,
		TokenStore: tokens,
		Logger:     NewDevNullLogger(),
	})

	if dir := session.WatchDir(); dir != storageDir {
		t.Errorf("WatchDir() = %q, want %q", dir, storageDir)
	}
}

func TestSessionNoPendingFlowInitially(t *testing.T) {
	session := newTestSession(t, testSpec())

	if session.HasPendingFlow() {
		t.Error("HasPendingFlow() = true for a fresh session")
	}
	if session.Token() != nil {
		t.Error("Token() returned a token for a fresh session")
	}
}

func TestSessionServerInfoUnconnected(t *testing.T) {
	session := newTestSession(t, testSpec())

	name, version := session.ServerInfo()
	if name != "" || version != "" {
		t.Errorf("ServerInfo() = (%q, %q) for an unconnected session", name, version)
	}
}

func TestSessionTokenAfterStore(t *testing.T) {
	session := newTestSession(t, testSpec())

	err := session.tokens.Store(session.ServerURL(), &pkgoauth.Token{
		AccessToken: "tok",
		Scope:       "read",
	}, "https://auth.example.com/token")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	token := session.Token()
	if token == nil {
		t.Fatal("Token() = nil after storing one")
	}
	if token.AccessToken != "tok" {
		t.Errorf("Token().AccessToken = %q, want %q", token.AccessToken, "tok")
	}
	if !strings.Contains(token.ServerURL, "127.0.0.1:1") {
		t.Errorf("stored token has ServerURL %q", token.ServerURL)
	}
}
