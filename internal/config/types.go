package config

import (
	"os"

	pkgoauth "gatepass/pkg/oauth"
)

// Config is the top-level configuration structure for gatepass.
type Config struct {
	// Servers are the declared MCP servers, referenced by id from the
	// CLI and the REPL.
	Servers []ServerSpec `yaml:"servers"`
}

// ServerSpec declares one MCP server.
type ServerSpec struct {
	// ID is the handle used on the command line.
	ID string `yaml:"id"`

	// Name is an optional display name. Defaults to the id.
	Name string `yaml:"name,omitempty"`

	// URL is the server's MCP endpoint.
	URL string `yaml:"url"`

	// Headers are extra HTTP headers sent on every request to the
	// server.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Auth carries static authorization settings. All fields are
	// optional; anything missing is discovered at login time.
	Auth *AuthSpec `yaml:"auth,omitempty"`
}

// DisplayName returns the name to show for the server.
func (s *ServerSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// AuthSpec carries static authorization settings for a server. Literal
// values take precedence over their _env counterparts, which name an
// environment variable to read at run time.
type AuthSpec struct {
	// ClientID is a pre-provisioned OAuth client id.
	ClientID string `yaml:"client_id,omitempty"`

	// ClientIDEnv names an environment variable holding the client id.
	ClientIDEnv string `yaml:"client_id_env,omitempty"`

	// ClientSecret is the client secret for confidential clients.
	// Prefer ClientSecretEnv to keep secrets out of config files.
	ClientSecret string `yaml:"client_secret,omitempty"`

	// ClientSecretEnv names an environment variable holding the secret.
	ClientSecretEnv string `yaml:"client_secret_env,omitempty"`

	// BearerToken is a pre-issued token. When set, the OAuth flow is
	// bypassed entirely for this server.
	BearerToken string `yaml:"bearer_token,omitempty"`

	// BearerEnv names an environment variable holding a pre-issued
	// token.
	BearerEnv string `yaml:"bearer_env,omitempty"`

	// Scopes override scope discovery. An explicitly empty list is
	// honored: no scope parameter is sent.
	Scopes []string `yaml:"scopes,omitempty"`

	// AuthorizationEndpoint and TokenEndpoint, when both set, skip
	// authorization server metadata discovery.
	AuthorizationEndpoint string `yaml:"authorization_endpoint,omitempty"`
	TokenEndpoint         string `yaml:"token_endpoint,omitempty"`

	// RegistrationEndpoint overrides the discovered registration
	// endpoint for dynamic client registration.
	RegistrationEndpoint string `yaml:"registration_endpoint,omitempty"`
}

// ResolveClientID returns the configured client id: the literal value
// first, then the named environment variable.
func (a *AuthSpec) ResolveClientID() string {
	if a == nil {
		return ""
	}
	if a.ClientID != "" {
		return a.ClientID
	}
	if a.ClientIDEnv != "" {
		return os.Getenv(a.ClientIDEnv)
	}
	return ""
}

// ResolveClientSecret returns the configured client secret, literal
// value before environment variable.
func (a *AuthSpec) ResolveClientSecret() string {
	if a == nil {
		return ""
	}
	if a.ClientSecret != "" {
		return a.ClientSecret
	}
	if a.ClientSecretEnv != "" {
		return os.Getenv(a.ClientSecretEnv)
	}
	return ""
}

// ResolveBearerToken returns the pre-issued bearer token, literal value
// before environment variable. Non-empty means this server never goes
// through the OAuth flow.
func (a *AuthSpec) ResolveBearerToken() string {
	if a == nil {
		return ""
	}
	if a.BearerToken != "" {
		return a.BearerToken
	}
	if a.BearerEnv != "" {
		return os.Getenv(a.BearerEnv)
	}
	return ""
}

// FlowConfig maps the server's static auth settings onto the OAuth flow
// configuration, resolving environment variables.
func (s *ServerSpec) FlowConfig() *pkgoauth.FlowConfig {
	if s.Auth == nil {
		return &pkgoauth.FlowConfig{}
	}
	return &pkgoauth.FlowConfig{
		ClientID:              s.Auth.ResolveClientID(),
		ClientSecret:          s.Auth.ResolveClientSecret(),
		Scopes:                s.Auth.Scopes,
		AuthorizationEndpoint: s.Auth.AuthorizationEndpoint,
		TokenEndpoint:         s.Auth.TokenEndpoint,
		RegistrationEndpoint:  s.Auth.RegistrationEndpoint,
	}
}

// Server returns the server with the given id.
func (c *Config) Server(id string) (*ServerSpec, bool) {
	for i := range c.Servers {
		if c.Servers[i].ID == id {
			return &c.Servers[i], true
		}
	}
	return nil, false
}

// ServerIDs returns the declared server ids in declaration order.
func (c *Config) ServerIDs() []string {
	ids := make([]string, 0, len(c.Servers))
	for i := range c.Servers {
		ids = append(ids, c.Servers[i].ID)
	}
	return ids
}
