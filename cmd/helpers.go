package cmd

import (
	"fmt"
	"net/url"
	"path/filepath"

	"gatepass/internal/config"
	"gatepass/internal/oauth"
	pkgoauth "gatepass/pkg/oauth"
)

// loadConfig loads the configuration, honoring --config-path.
func loadConfig() (*config.Config, error) {
	if rootConfigPath != "" {
		return config.LoadFromPath(rootConfigPath)
	}
	return config.Load()
}

// resolveServer maps the command line onto a server spec. --endpoint
// wins over the config file: it produces a synthetic spec whose id is
// the first positional argument when given, otherwise the endpoint
// host. Without --endpoint the first argument must name a configured
// server.
func resolveServer(cfg *config.Config, args []string) (*config.ServerSpec, error) {
	if rootEndpoint != "" {
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		if id == "" {
			if u, err := url.Parse(rootEndpoint); err == nil && u.Host != "" {
				id = u.Host
			} else {
				id = "endpoint"
			}
		}
		return &config.ServerSpec{ID: id, URL: rootEndpoint}, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("server id required (or pass --endpoint)")
	}

	spec, ok := cfg.Server(args[0])
	if !ok {
		return nil, fmt.Errorf("unknown server %q, declare it in the config or pass --endpoint", args[0])
	}
	return spec, nil
}

// serverFromArgs resolves the target server, loading the config only
// when --endpoint is not set.
func serverFromArgs(args []string) (*config.ServerSpec, error) {
	if rootEndpoint != "" {
		return resolveServer(nil, args)
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return resolveServer(cfg, args)
}

// authStores bundles the persistent stores and the flow manager the
// auth commands share.
type authStores struct {
	tokens  *oauth.TokenStore
	clients *oauth.ClientStore
	manager *oauth.Manager
}

// newAuthStores builds file-backed token and client stores and a flow
// manager whose pending state survives process restarts, so a login
// started here can be finished by a later `auth code` invocation.
func newAuthStores() (*authStores, error) {
	tokens, err := oauth.NewTokenStore(oauth.TokenStoreConfig{FileMode: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	clients, err := oauth.NewClientStore(oauth.ClientStoreConfig{FileMode: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create client store: %w", err)
	}

	configDir, err := config.DefaultConfigDir()
	if err != nil {
		return nil, err
	}

	manager, err := oauth.NewManager(oauth.ManagerConfig{
		Client:      pkgoauth.NewClient(),
		TokenStore:  tokens,
		ClientStore: clients,
		StateDir:    filepath.Join(configDir, "state"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth manager: %w", err)
	}

	return &authStores{tokens: tokens, clients: clients, manager: manager}, nil
}
