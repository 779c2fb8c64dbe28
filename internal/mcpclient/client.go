package mcpclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"gatepass/pkg/logging"
)

const defaultTimeout = 30 * time.Second

// Config describes a connection to a single MCP tool-server.
type Config struct {
	// ServerID is the configured identifier, used in errors and logs.
	ServerID string

	// URL is the MCP endpoint.
	URL string

	// Headers are extra HTTP headers sent on every request.
	Headers map[string]string

	// BearerToken is a static token sent as an Authorization header.
	// When set it takes precedence over TokenStore.
	BearerToken string

	// TokenStore supplies stored OAuth credentials to the transport.
	TokenStore transport.TokenStore

	// Scopes are the OAuth scopes for this connection.
	Scopes []string

	// ClientVersion is reported in the MCP handshake.
	ClientVersion string

	// Timeout bounds each MCP operation.
	Timeout time.Duration
}

// Client is an MCP client for a single tool-server over streamable HTTP.
type Client struct {
	config  Config
	timeout time.Duration

	mu            sync.RWMutex
	client        client.MCPClient
	connected     bool
	serverName    string
	serverVersion string
}

// New creates a client for the given server. Call Connect before any
// other operation.
func New(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if config.ClientVersion == "" {
		config.ClientVersion = "dev"
	}
	return &Client{
		config:  config,
		timeout: timeout,
	}
}

// Connect establishes the connection and performs the protocol handshake.
// A 401 from the server is returned as an AuthRequiredError.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if c.config.URL == "" {
		return fmt.Errorf("server URL is empty")
	}

	logging.Debug("MCPClient", "Creating streamable HTTP client for %s", c.config.URL)

	headers := make(map[string]string, len(c.config.Headers)+1)
	for k, v := range c.config.Headers {
		headers[k] = v
	}
	if c.config.BearerToken != "" {
		headers["Authorization"] = "Bearer " + c.config.BearerToken
	}

	var opts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}
	if c.config.BearerToken == "" && c.config.TokenStore != nil {
		opts = append(opts, transport.WithHTTPOAuth(transport.OAuthConfig{
			TokenStore: c.config.TokenStore,
			Scopes:     c.config.Scopes,
		}))
		logging.Debug("MCPClient", "Using stored OAuth credentials for %s", c.config.URL)
	}

	mcpClient, err := client.NewStreamableHttpClient(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to create streamable HTTP client: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	initResult, err := mcpClient.Initialize(timeoutCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "gatepass",
				Version: c.config.ClientVersion,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		mcpClient.Close()

		if IsUnauthorized(err) {
			logging.Debug("MCPClient", "Authentication required for %s", c.config.URL)
			return &AuthRequiredError{ServerID: c.config.ServerID, ServerURL: c.config.URL, Err: err}
		}

		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	c.client = mcpClient
	c.connected = true
	c.serverName = initResult.ServerInfo.Name
	c.serverVersion = initResult.ServerInfo.Version

	logging.Debug("MCPClient", "Connected to %s. Server: %s, Version: %s",
		c.config.URL, c.serverName, c.serverVersion)

	return nil
}

// Close shuts down the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.connected = false
	c.client = nil

	return err
}

// IsConnected reports whether the handshake has completed.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ServerInfo returns the server name and version from the handshake.
func (c *Client) ServerInfo() (name, version string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName, c.serverVersion
}

// ServerID returns the configured identifier for this connection.
func (c *Client) ServerID() string {
	return c.config.ServerID
}

// URL returns the configured endpoint.
func (c *Client) URL() string {
	return c.config.URL
}

func (c *Client) checkConnected() error {
	if !c.connected || c.client == nil {
		return fmt.Errorf("client not connected")
	}
	return nil
}

// ListTools returns all tools the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.ListTools(timeoutCtx, mcp.ListToolsRequest{})
	if err != nil {
		if IsUnauthorized(err) {
			return nil, &AuthRequiredError{ServerID: c.config.ServerID, ServerURL: c.config.URL, Err: err}
		}
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	return result.Tools, nil
}

// CallTool executes a tool and returns the result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.CallTool(timeoutCtx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		if IsUnauthorized(err) {
			return nil, &AuthRequiredError{ServerID: c.config.ServerID, ServerURL: c.config.URL, Err: err}
		}
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}

	return result, nil
}

// Ping checks if the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.Ping(timeoutCtx)
}

// FlattenText extracts the text blocks from a tool result, joined with
// newlines. Non-text content is skipped.
func FlattenText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, textContent.Text)
		}
	}

	return strings.Join(parts, "\n")
}
