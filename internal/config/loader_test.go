package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// stubConfigPaths points the lookup chain at files under dir, restoring
// the real lookups when the test ends.
func stubConfigPaths(t *testing.T, projectPath, userPath string) {
	t.Helper()
	originalProject := getProjectConfigPath
	originalUser := getUserConfigPath
	t.Cleanup(func() {
		getProjectConfigPath = originalProject
		getUserConfigPath = originalUser
	})
	getProjectConfigPath = func() (string, error) { return projectPath, nil }
	getUserConfigPath = func() (string, error) { return userPath, nil }
}

const sampleConfig = `
servers:
  - id: files
    name: File server
    url: https://mcp.example.com/mcp
    headers:
      X-Team: platform
    auth:
      client_id: static-client
      scopes: [files.read, files.write]
      authorization_endpoint: https://auth.example.com/authorize
      token_endpoint: https://auth.example.com/token
  - id: internal
    url: http://localhost:9000/mcp
    auth:
      bearer_env: INTERNAL_MCP_TOKEN
`

func TestLoadFromPath(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "config.yaml", sampleConfig)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)

	files := cfg.Servers[0]
	assert.Equal(t, "files", files.ID)
	assert.Equal(t, "File server", files.Name)
	assert.Equal(t, "https://mcp.example.com/mcp", files.URL)
	assert.Equal(t, "platform", files.Headers["X-Team"])
	require.NotNil(t, files.Auth)
	assert.Equal(t, "static-client", files.Auth.ClientID)
	assert.Equal(t, []string{"files.read", "files.write"}, files.Auth.Scopes)
	assert.Equal(t, "https://auth.example.com/authorize", files.Auth.AuthorizationEndpoint)

	internal := cfg.Servers[1]
	assert.Equal(t, "internal", internal.ID)
	require.NotNil(t, internal.Auth)
	assert.Equal(t, "INTERNAL_MCP_TOKEN", internal.Auth.BearerEnv)
}

func TestLoadFromPath_ExplicitlyEmptyScopes(t *testing.T) {
	content := `
servers:
  - id: noscope
    url: https://mcp.example.com
    auth:
      scopes: []
`
	path := writeConfigFile(t, t.TempDir(), "config.yaml", content)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Servers[0].Auth)

	// An explicitly empty list must stay distinguishable from an
	// absent one: it means "send no scope parameter".
	assert.NotNil(t, cfg.Servers[0].Auth.Scopes)
	assert.Empty(t, cfg.Servers[0].Auth.Scopes)
}

func TestLoadFromPath_NotFound(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadFromPath_Malformed(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "config.yaml", "servers: [whoops")
	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoad_EnvVarWins(t *testing.T) {
	dir := t.TempDir()
	envPath := writeConfigFile(t, dir, "from-env.yaml", `
servers:
  - id: env-server
    url: https://env.example.com
`)
	projectPath := writeConfigFile(t, dir, "gatepass.yaml", `
servers:
  - id: project-server
    url: https://project.example.com
`)
	stubConfigPaths(t, projectPath, filepath.Join(dir, "nonexistent-user.yaml"))
	t.Setenv(configPathEnv, envPath)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "env-server", cfg.Servers[0].ID)
}

func TestLoad_EnvVarMissingFileErrors(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "gone.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_ProjectBeforeUser(t *testing.T) {
	dir := t.TempDir()
	projectPath := writeConfigFile(t, dir, "gatepass.yaml", `
servers:
  - id: project-server
    url: https://project.example.com
`)
	userPath := writeConfigFile(t, dir, "user.yaml", `
servers:
  - id: user-server
    url: https://user.example.com
`)
	stubConfigPaths(t, projectPath, userPath)
	t.Setenv(configPathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "project-server", cfg.Servers[0].ID)
}

func TestLoad_UserFallback(t *testing.T) {
	dir := t.TempDir()
	userPath := writeConfigFile(t, dir, "user.yaml", `
servers:
  - id: user-server
    url: https://user.example.com
`)
	stubConfigPaths(t, filepath.Join(dir, "no-project.yaml"), userPath)
	t.Setenv(configPathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "user-server", cfg.Servers[0].ID)
}

func TestLoad_DefaultsWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	stubConfigPaths(t, filepath.Join(dir, "no-project.yaml"), filepath.Join(dir, "no-user.yaml"))
	t.Setenv(configPathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Servers)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid",
			config: Config{Servers: []ServerSpec{
				{ID: "a", URL: "https://a.example.com"},
				{ID: "b", URL: "https://b.example.com"},
			}},
		},
		{
			name:    "missing id",
			config:  Config{Servers: []ServerSpec{{URL: "https://a.example.com"}}},
			wantErr: "has no id",
		},
		{
			name:    "missing url",
			config:  Config{Servers: []ServerSpec{{ID: "a"}}},
			wantErr: "has no url",
		},
		{
			name: "duplicate id",
			config: Config{Servers: []ServerSpec{
				{ID: "a", URL: "https://a.example.com"},
				{ID: "a", URL: "https://b.example.com"},
			}},
			wantErr: "duplicate server id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
