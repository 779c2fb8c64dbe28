// Package config loads gatepass's declarative configuration.
//
// The configuration is a single YAML file declaring MCP servers and
// their optional static authorization settings. The lookup chain is:
//
//  1. The file named by the GATEPASS_CONFIG environment variable
//  2. ./gatepass.yaml in the working directory
//  3. ~/.config/gatepass/config.yaml
//  4. Built-in defaults (no servers)
//
// A typical file:
//
//	servers:
//	  - id: files
//	    url: https://mcp.example.com/mcp
//	    auth:
//	      client_id_env: FILES_OAUTH_CLIENT_ID
//	      scopes: [files.read, files.write]
//	  - id: internal
//	    url: http://localhost:9000/mcp
//	    auth:
//	      bearer_env: INTERNAL_MCP_TOKEN
//
// Auth fields ending in _env name environment variables read at load
// time; literal values win over their _env counterparts. A resolved
// bearer token bypasses the OAuth flow for that server entirely.
package config
