package oauth

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ProtocolVersion is sent as the MCP-Protocol-Version header on
// metadata and registration requests.
const ProtocolVersion = "2024-11-05"

// DefaultExpiryMargin is the default margin when checking token expiry.
// This accounts for clock skew and network latency.
const DefaultExpiryMargin = 30 * time.Second

// NormalizeServerURL normalizes a server URL by stripping transport-specific
// path suffixes (/mcp, /sse) and trailing slashes to get the base server URL.
// This keeps token storage keys and metadata discovery consistent regardless
// of which endpoint path is used when connecting.
func NormalizeServerURL(serverURL string) string {
	serverURL = strings.TrimSuffix(serverURL, "/")
	serverURL = strings.TrimSuffix(serverURL, "/mcp")
	serverURL = strings.TrimSuffix(serverURL, "/sse")
	return serverURL
}

// Token represents an OAuth access token with associated metadata.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the token lifetime in seconds (from token response).
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the calculated expiration timestamp.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// ClientID is the client identity used to obtain this token. It is
	// attached after a successful exchange so callers can persist it and
	// skip dynamic registration on the next flow against the same server.
	ClientID string `json:"client_id,omitempty"`
}

// IsExpired checks if the token has expired.
// Returns true if the token is expired or will expire within the default margin.
func (t *Token) IsExpired() bool {
	return t.IsExpiredWithMargin(DefaultExpiryMargin)
}

// IsExpiredWithMargin checks if the token has expired or will expire within the margin.
func (t *Token) IsExpiredWithMargin(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false // Tokens without expiration don't expire
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// SetExpiresAtFromExpiresIn calculates and sets ExpiresAt from ExpiresIn.
func (t *Token) SetExpiresAtFromExpiresIn() {
	if t.ExpiresIn > 0 && t.ExpiresAt.IsZero() {
		t.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ToOAuth2Token converts the Token to an oauth2.Token for compatibility
// with golang.org/x/oauth2.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// Metadata represents OAuth 2.0 Authorization Server Metadata as defined
// in RFC 8414. The same shape covers OpenID Connect discovery documents,
// which carry the two required endpoints under identical JSON keys.
type Metadata struct {
	// Issuer is the authorization server's issuer identifier.
	Issuer string `json:"issuer,omitempty"`

	// AuthorizationEndpoint is the URL of the authorization endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint.
	TokenEndpoint string `json:"token_endpoint"`

	// RegistrationEndpoint is the URL for dynamic client registration.
	RegistrationEndpoint string `json:"registration_endpoint,omitempty"`

	// ScopesSupported lists the OAuth 2.0 scope values supported.
	// Deliberately unused for scope resolution; see ResolveScope.
	ScopesSupported []string `json:"scopes_supported,omitempty"`
}

// ProtectedResourceMetadata represents OAuth 2.0 Protected Resource
// Metadata as defined in RFC 9728.
type ProtectedResourceMetadata struct {
	// Resource is the canonical resource identifier declared by the server.
	Resource string `json:"resource,omitempty"`

	// AuthorizationServers lists issuer URLs that protect this resource.
	AuthorizationServers []string `json:"authorization_servers,omitempty"`

	// ScopesSupported lists scopes understood by this resource.
	ScopesSupported []string `json:"scopes_supported,omitempty"`
}

// AuthChallenge holds the hint fields parsed from a WWW-Authenticate
// Bearer challenge. Every field is optional; a response whose challenge
// carries none of them is treated as no challenge at all (nil, not an
// empty struct).
type AuthChallenge struct {
	// ResourceMetadataURL points at the RFC 9728 protected resource
	// metadata document (resource_metadata parameter).
	ResourceMetadataURL string

	// Scope is the space-separated scope hint.
	Scope string

	// AuthorizationServer is the issuer hint, tried first when building
	// the issuer candidate list.
	AuthorizationServer string

	// Resource is the resource-value hint.
	Resource string
}

// IsEmpty reports whether the challenge carries no usable hint.
func (c *AuthChallenge) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.ResourceMetadataURL == "" && c.Scope == "" &&
		c.AuthorizationServer == "" && c.Resource == ""
}

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) challenge.
// PKCE is required for public clients to prevent authorization code
// interception.
type PKCEChallenge struct {
	// CodeVerifier is the cryptographically random string. It is kept
	// secret and only sent with the token exchange.
	CodeVerifier string

	// CodeChallenge is the SHA256 hash of the verifier (base64url-encoded).
	// This is sent in the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256"; the plain method is never used.
	CodeChallengeMethod string
}

// ClientRegistrationRequest is the RFC 7591 dynamic client registration
// payload for a native application.
type ClientRegistrationRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ApplicationType         string   `json:"application_type"`
}

// ClientRegistrationResponse is the subset of the RFC 7591 registration
// response this client consumes.
type ClientRegistrationResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// FlowConfig carries the caller-supplied static overrides for an
// authorization flow. Any field may be empty; discovery fills the gaps.
type FlowConfig struct {
	// ClientID bypasses dynamic registration when set.
	ClientID string

	// ClientSecret accompanies ClientID for confidential clients.
	ClientSecret string

	// Scopes are the statically configured scopes, consulted after the
	// challenge hint during scope resolution.
	Scopes []string

	// AuthorizationEndpoint and TokenEndpoint, when both set, skip
	// authorization server discovery entirely.
	AuthorizationEndpoint string
	TokenEndpoint         string

	// RegistrationEndpoint overrides the discovered registration endpoint.
	RegistrationEndpoint string
}

// PendingAuthorization is the state that must survive the gap between
// issuing an authorization URL and receiving the authorization code. The
// caller holds it keyed by server id; it is consumed exactly once by
// either the callback path or the manual completion path.
type PendingAuthorization struct {
	// FlowID identifies this flow attempt in logs.
	FlowID string `json:"flow_id"`

	// ClientID is the client identity the authorization URL was built for.
	ClientID string `json:"client_id"`

	// ClientSecret is sent with the token exchange when non-empty.
	ClientSecret string `json:"client_secret,omitempty"`

	// RedirectURI is the loopback redirect embedded in the authorization
	// URL. The port was reserved before the URL was issued and must not
	// change afterwards.
	RedirectURI string `json:"redirect_uri"`

	// Port is the reserved loopback port the callback listener binds.
	Port int `json:"port"`

	// CodeVerifier is the PKCE verifier for the token exchange.
	CodeVerifier string `json:"code_verifier"`

	// State is the anti-CSRF state parameter.
	State string `json:"state"`

	// TokenEndpoint is where the authorization code is exchanged.
	TokenEndpoint string `json:"token_endpoint"`

	// ResourceValue is the effective resource parameter. It may differ
	// from the resource identifier when protected resource metadata
	// declared a canonical form.
	ResourceValue string `json:"resource,omitempty"`

	// CreatedAt records when the flow was prepared.
	CreatedAt time.Time `json:"created_at"`
}

// isHTTPURL reports whether s parses as an absolute http or https URL.
func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
