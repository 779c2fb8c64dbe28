package oauth

import (
	"context"

	"github.com/mark3labs/mcp-go/client/transport"

	pkgoauth "gatepass/pkg/oauth"
)

// MCPTokenStore adapts the persistent TokenStore to the mcp-go
// transport.TokenStore interface for a single server URL. The transport
// reads the stored token for every request and writes back tokens it
// refreshes on its own, so refreshed credentials survive the process.
type MCPTokenStore struct {
	store     *TokenStore
	serverURL string
}

// NewMCPTokenStore binds a server URL to the token store.
func NewMCPTokenStore(store *TokenStore, serverURL string) *MCPTokenStore {
	return &MCPTokenStore{
		store:     store,
		serverURL: serverURL,
	}
}

// GetToken returns the stored token for the bound server URL. Expired
// tokens are returned as-is: the transport inspects expiry itself and
// drives a refresh when it holds a refresh token.
func (s *MCPTokenStore) GetToken(ctx context.Context) (*transport.Token, error) {
	stored := s.store.Get(s.serverURL)
	if stored == nil || stored.AccessToken == "" {
		return nil, transport.ErrNoToken
	}

	return &transport.Token{
		AccessToken:  stored.AccessToken,
		TokenType:    stored.TokenType,
		RefreshToken: stored.RefreshToken,
		Scope:        stored.Scope,
		ExpiresAt:    stored.ExpiresAt,
	}, nil
}

// SaveToken persists a token handed back by the transport, preserving
// the token endpoint and client id already on record so later refreshes
// keep working.
func (s *MCPTokenStore) SaveToken(ctx context.Context, token *transport.Token) error {
	stored := s.store.Get(s.serverURL)

	update := &pkgoauth.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Scope:        token.Scope,
		ExpiresAt:    token.ExpiresAt,
	}

	tokenEndpoint := ""
	if stored != nil {
		tokenEndpoint = stored.TokenEndpoint
		update.ClientID = stored.ClientID
		if update.RefreshToken == "" {
			update.RefreshToken = stored.RefreshToken
		}
	}

	return s.store.Store(s.serverURL, update, tokenEndpoint)
}

var _ transport.TokenStore = (*MCPTokenStore)(nil)
