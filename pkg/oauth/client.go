package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is the default TTL for cached authorization
	// server metadata.
	DefaultMetadataCacheTTL = 30 * time.Minute
)

// metadataCacheEntry holds cached authorization server metadata with its
// timestamp.
type metadataCacheEntry struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// Client drives the OAuth authorization flow for MCP servers: challenge
// probing, metadata discovery, dynamic registration, authorization URL
// construction, and token exchange.
type Client struct {
	httpClient *http.Client

	// probeClient never follows redirects so WWW-Authenticate headers on
	// 3xx responses stay visible.
	probeClient *http.Client

	logger *slog.Logger

	// Metadata cache with mutex for thread safety
	metadataMu    sync.RWMutex
	metadataCache map[string]*metadataCacheEntry
	metadataTTL   time.Duration

	// singleflight group to deduplicate concurrent metadata fetches
	metadataGroup singleflight.Group
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetadataCacheTTL sets the metadata cache TTL.
func WithMetadataCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.metadataTTL = ttl
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultHTTPTimeout},
		logger:        slog.Default(),
		metadataCache: make(map[string]*metadataCacheEntry),
		metadataTTL:   DefaultMetadataCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	probe := *c.httpClient
	probe.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.probeClient = &probe

	return c
}

// PreparedFlow is the result of PrepareFlow: the URL the user must open
// in a browser and the pending state needed to finish the flow.
type PreparedFlow struct {
	AuthorizationURL string
	Pending          *PendingAuthorization
}

// PrepareFlow runs the discovery and registration half of the
// authorization flow for an MCP server URL: it resolves the resource
// identifier, probes for a Bearer challenge, discovers resource and
// authorization server metadata, resolves scopes, reserves the loopback
// callback port, generates PKCE material, obtains a client id (from cfg
// or dynamic registration), and builds the authorization URL.
//
// The returned PendingAuthorization must be kept by the caller and
// handed to the callback listener or the manual completion path.
func (c *Client) PrepareFlow(ctx context.Context, serverURL string, cfg *FlowConfig) (*PreparedFlow, error) {
	if cfg == nil {
		cfg = &FlowConfig{}
	}

	resource, err := ResourceIdentifier(serverURL)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Resolved OAuth resource", "resource", resource.String())

	discovery := c.discoverResource(ctx, resource)
	if discovery.metadata != nil {
		c.logger.Debug("Fetched protected resource metadata",
			"resource", discovery.metadata.Resource,
			"authorization_servers", discovery.metadata.AuthorizationServers)
	}

	issuers := IssuerCandidates(resource, discovery.metadata, discovery.authServerHint)

	metadata, err := c.DiscoverAuthServerMetadata(ctx, issuers, cfg)
	if err != nil {
		return nil, err
	}

	authorizationEndpoint := cfg.AuthorizationEndpoint
	if authorizationEndpoint == "" {
		authorizationEndpoint = metadata.AuthorizationEndpoint
	}
	tokenEndpoint := cfg.TokenEndpoint
	if tokenEndpoint == "" {
		tokenEndpoint = metadata.TokenEndpoint
	}
	registrationEndpoint := cfg.RegistrationEndpoint
	if registrationEndpoint == "" {
		registrationEndpoint = metadata.RegistrationEndpoint
	}
	if registrationEndpoint == "" {
		registrationEndpoint = defaultRegistrationEndpoint(authorizationEndpoint)
	}

	scope := ResolveScope(discovery.scopeHint, cfg.Scopes, discovery.metadata)

	resourceValue := resource.String()
	if discovery.metadata != nil && discovery.metadata.Resource != "" {
		resourceValue = discovery.metadata.Resource
	} else if discovery.resourceHint != "" {
		resourceValue = discovery.resourceHint
	}

	// The port is reserved before the authorization URL is built so the
	// redirect_uri embedded in the URL and in any registration payload
	// stays stable; the callback listener rebinds it later.
	port, err := ReserveLoopbackPort()
	if err != nil {
		return nil, err
	}
	redirectURI := fmt.Sprintf("http://localhost:%d/callback", port)

	pkce, err := GeneratePKCE()
	if err != nil {
		return nil, err
	}
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	clientID := cfg.ClientID
	clientSecret := cfg.ClientSecret
	if clientID == "" {
		if registrationEndpoint == "" {
			return nil, &NoClientAvailableError{}
		}
		registration, err := c.RegisterClient(ctx, registrationEndpoint, redirectURI)
		if err != nil {
			return nil, err
		}
		clientID = registration.ClientID
		if registration.ClientSecret != "" {
			clientSecret = registration.ClientSecret
		}
	}

	authorizationURL, err := BuildAuthorizationURL(authorizationEndpoint, clientID, redirectURI, state, scope, resourceValue, pkce)
	if err != nil {
		return nil, err
	}

	pending := &PendingAuthorization{
		FlowID:        uuid.NewString(),
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURI:   redirectURI,
		Port:          port,
		CodeVerifier:  pkce.CodeVerifier,
		State:         state,
		TokenEndpoint: tokenEndpoint,
		ResourceValue: resourceValue,
		CreatedAt:     time.Now(),
	}

	return &PreparedFlow{
		AuthorizationURL: authorizationURL,
		Pending:          pending,
	}, nil
}

// ReserveLoopbackPort binds an ephemeral loopback port and immediately
// releases it, returning the port number for later re-binding by the
// callback listener.
func ReserveLoopbackPort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to reserve loopback port: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	if err := listener.Close(); err != nil {
		return 0, fmt.Errorf("failed to release loopback port: %w", err)
	}
	return port, nil
}

// BuildAuthorizationURL assembles the authorization request URL. Query
// pairs are appended in a fixed order after any query the endpoint
// already carries; url.Values.Encode would sort them.
func BuildAuthorizationURL(authorizationEndpoint, clientID, redirectURI, state, scope, resourceValue string, pkce *PKCEChallenge) (string, error) {
	u, err := url.Parse(authorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse authorization endpoint: %w", err)
	}

	pairs := [][2]string{
		{"response_type", "code"},
		{"client_id", clientID},
		{"redirect_uri", redirectURI},
		{"code_challenge", pkce.CodeChallenge},
		{"code_challenge_method", pkce.CodeChallengeMethod},
		{"state", state},
		{"resource", resourceValue},
	}
	if scope != "" {
		pairs = append(pairs, [2]string{"scope", scope})
	}

	var query strings.Builder
	query.WriteString(u.RawQuery)
	for _, pair := range pairs {
		if query.Len() > 0 {
			query.WriteByte('&')
		}
		query.WriteString(url.QueryEscape(pair[0]))
		query.WriteByte('=')
		query.WriteString(url.QueryEscape(pair[1]))
	}
	u.RawQuery = query.String()

	return u.String(), nil
}
