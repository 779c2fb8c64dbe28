package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

func TestResolveScope(t *testing.T) {
	prm := &ProtectedResourceMetadata{ScopesSupported: []string{"w"}}

	tests := []struct {
		name         string
		scopeHint    string
		configScopes []string
		meta         *ProtectedResourceMetadata
		want         string
	}{
		{
			name:         "challenge hint wins",
			scopeHint:    "x",
			configScopes: []string{"y", "z"},
			meta:         prm,
			want:         "x",
		},
		{
			name:         "config scopes second",
			configScopes: []string{"y", "z"},
			meta:         prm,
			want:         "y z",
		},
		{
			name: "resource scopes third",
			meta: prm,
			want: "w",
		},
		{
			name: "nothing resolves to empty",
			want: "",
		},
		{
			name:         "configured empty list still counts as configured",
			configScopes: []string{},
			meta:         prm,
			want:         "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveScope(tt.scopeHint, tt.configScopes, tt.meta)
			if got != tt.want {
				t.Errorf("ResolveScope() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResourceMetadataURLs(t *testing.T) {
	t.Run("resource with path", func(t *testing.T) {
		urls := resourceMetadataURLs(mustParseURL(t, "https://h/mcp"))

		want := []string{
			"https://h/.well-known/oauth-protected-resource/mcp",
			"https://h/.well-known/oauth-protected-resource",
		}
		if len(urls) != len(want) {
			t.Fatalf("got %d candidates, want %d", len(urls), len(want))
		}
		for i := range want {
			if urls[i].String() != want[i] {
				t.Errorf("candidate[%d] = %q, want %q", i, urls[i].String(), want[i])
			}
		}
	})

	t.Run("root resource", func(t *testing.T) {
		urls := resourceMetadataURLs(mustParseURL(t, "https://h/"))

		if len(urls) != 1 {
			t.Fatalf("got %d candidates, want 1", len(urls))
		}
		if urls[0].String() != "https://h/.well-known/oauth-protected-resource" {
			t.Errorf("candidate = %q, want root well-known", urls[0].String())
		}
	})
}

func TestAuthServerMetadataURLs(t *testing.T) {
	t.Run("origin issuer", func(t *testing.T) {
		urls := authServerMetadataURLs(mustParseURL(t, "https://as.example.com"))

		want := []string{
			"https://as.example.com/.well-known/oauth-authorization-server",
			"https://as.example.com/.well-known/openid-configuration",
		}
		if len(urls) != len(want) {
			t.Fatalf("got %d candidates, want %d", len(urls), len(want))
		}
		for i := range want {
			if urls[i].String() != want[i] {
				t.Errorf("candidate[%d] = %q, want %q", i, urls[i].String(), want[i])
			}
		}
	})

	t.Run("issuer with path", func(t *testing.T) {
		urls := authServerMetadataURLs(mustParseURL(t, "https://as.example.com/tenant"))

		want := []string{
			"https://as.example.com/.well-known/oauth-authorization-server/tenant",
			"https://as.example.com/tenant/.well-known/openid-configuration",
		}
		if len(urls) != len(want) {
			t.Fatalf("got %d candidates, want %d", len(urls), len(want))
		}
		for i := range want {
			if urls[i].String() != want[i] {
				t.Errorf("candidate[%d] = %q, want %q", i, urls[i].String(), want[i])
			}
		}
	})

	t.Run("issuer already well-known", func(t *testing.T) {
		issuer := "https://as.example.com/.well-known/oauth-authorization-server"
		urls := authServerMetadataURLs(mustParseURL(t, issuer))

		if len(urls) != 1 {
			t.Fatalf("got %d candidates, want 1", len(urls))
		}
		if urls[0].String() != issuer {
			t.Errorf("candidate = %q, want verbatim issuer", urls[0].String())
		}
	})
}

func TestIssuerCandidates(t *testing.T) {
	resource := mustParseURL(t, "https://h/mcp")

	t.Run("hint first then metadata servers", func(t *testing.T) {
		meta := &ProtectedResourceMetadata{
			AuthorizationServers: []string{"https://as1.example.com", "https://as2.example.com"},
		}
		issuers := IssuerCandidates(resource, meta, "https://hint.example.com")

		want := []string{"https://hint.example.com", "https://as1.example.com", "https://as2.example.com"}
		if len(issuers) != len(want) {
			t.Fatalf("got %d issuers, want %d", len(issuers), len(want))
		}
		for i := range want {
			if issuers[i].String() != want[i] {
				t.Errorf("issuer[%d] = %q, want %q", i, issuers[i].String(), want[i])
			}
		}
	})

	t.Run("non-absolute hint skipped", func(t *testing.T) {
		issuers := IssuerCandidates(resource, nil, "as.example.com")

		if len(issuers) != 1 {
			t.Fatalf("got %d issuers, want 1", len(issuers))
		}
		if issuers[0].String() != "https://h" {
			t.Errorf("issuer = %q, want resource origin", issuers[0].String())
		}
	})

	t.Run("falls back to resource origin", func(t *testing.T) {
		issuers := IssuerCandidates(resource, nil, "")

		if len(issuers) != 1 {
			t.Fatalf("got %d issuers, want 1", len(issuers))
		}
		if issuers[0].String() != "https://h" {
			t.Errorf("issuer = %q, want resource origin", issuers[0].String())
		}
	})
}

func TestDefaultRegistrationEndpoint(t *testing.T) {
	got := defaultRegistrationEndpoint("https://as.example.com/oauth/authorize?foo=1")
	if got != "https://as.example.com/register" {
		t.Errorf("defaultRegistrationEndpoint() = %q, want %q", got, "https://as.example.com/register")
	}

	if got := defaultRegistrationEndpoint(":"); got != "" {
		t.Errorf("defaultRegistrationEndpoint(invalid) = %q, want empty", got)
	}
}

func TestDiscoverAuthServerMetadata_StaticConfig(t *testing.T) {
	// A closed server proves the static short-circuit never fetches.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	issuer := mustParseURL(t, server.URL)
	server.Close()

	cfg := &FlowConfig{
		AuthorizationEndpoint: "https://as.example.com/authorize",
		TokenEndpoint:         "https://as.example.com/token",
		RegistrationEndpoint:  "https://as.example.com/register",
		Scopes:                []string{"files"},
	}

	client := NewClient()
	metadata, err := client.DiscoverAuthServerMetadata(context.Background(), []*url.URL{issuer}, cfg)
	if err != nil {
		t.Fatalf("DiscoverAuthServerMetadata() error = %v", err)
	}

	if metadata.AuthorizationEndpoint != cfg.AuthorizationEndpoint {
		t.Errorf("AuthorizationEndpoint = %q, want %q", metadata.AuthorizationEndpoint, cfg.AuthorizationEndpoint)
	}
	if metadata.TokenEndpoint != cfg.TokenEndpoint {
		t.Errorf("TokenEndpoint = %q, want %q", metadata.TokenEndpoint, cfg.TokenEndpoint)
	}
	if metadata.RegistrationEndpoint != cfg.RegistrationEndpoint {
		t.Errorf("RegistrationEndpoint = %q, want %q", metadata.RegistrationEndpoint, cfg.RegistrationEndpoint)
	}
}

func TestDiscoverAuthServerMetadata_OAuthEndpoint(t *testing.T) {
	var sawHeader atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("MCP-Protocol-Version") == ProtocolVersion {
			sawHeader.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"authorization_endpoint": "https://as.example.com/authorize",
			"token_endpoint": "https://as.example.com/token",
			"registration_endpoint": "https://as.example.com/register"
		}`, "https://as.example.com")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient()
	metadata, err := client.DiscoverAuthServerMetadata(context.Background(), []*url.URL{mustParseURL(t, server.URL)}, nil)
	if err != nil {
		t.Fatalf("DiscoverAuthServerMetadata() error = %v", err)
	}

	if metadata.AuthorizationEndpoint != "https://as.example.com/authorize" {
		t.Errorf("AuthorizationEndpoint = %q", metadata.AuthorizationEndpoint)
	}
	if metadata.RegistrationEndpoint != "https://as.example.com/register" {
		t.Errorf("RegistrationEndpoint = %q", metadata.RegistrationEndpoint)
	}
	if !sawHeader.Load() {
		t.Error("metadata fetch did not send MCP-Protocol-Version header")
	}
}

func TestDiscoverAuthServerMetadata_OIDCFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"issuer": "https://as.example.com",
			"authorization_endpoint": "https://as.example.com/authorize",
			"token_endpoint": "https://as.example.com/token"
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient()
	metadata, err := client.DiscoverAuthServerMetadata(context.Background(), []*url.URL{mustParseURL(t, server.URL)}, nil)
	if err != nil {
		t.Fatalf("DiscoverAuthServerMetadata() error = %v", err)
	}

	if metadata.TokenEndpoint != "https://as.example.com/token" {
		t.Errorf("TokenEndpoint = %q, want OIDC document value", metadata.TokenEndpoint)
	}
}

func TestDiscoverAuthServerMetadata_Exhausted(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	issuers := []*url.URL{
		mustParseURL(t, server.URL),
		mustParseURL(t, server.URL+"/tenant"),
	}

	client := NewClient()
	_, err := client.DiscoverAuthServerMetadata(context.Background(), issuers, nil)
	if err == nil {
		t.Fatal("DiscoverAuthServerMetadata() expected error, got nil")
	}

	var exhausted *DiscoveryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *DiscoveryExhaustedError", err)
	}
	if len(exhausted.Attempts) != 2 {
		t.Errorf("Attempts = %d, want 2", len(exhausted.Attempts))
	}
	if !strings.Contains(err.Error(), "failed to discover OAuth metadata") {
		t.Errorf("error message = %q, missing discovery context", err.Error())
	}
}

func TestDiscoverIssuerMetadata_Cache(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"issuer": "https://as.example.com",
			"authorization_endpoint": "https://as.example.com/authorize",
			"token_endpoint": "https://as.example.com/token"
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient()
	issuers := []*url.URL{mustParseURL(t, server.URL)}

	for i := 0; i < 3; i++ {
		if _, err := client.DiscoverAuthServerMetadata(context.Background(), issuers, nil); err != nil {
			t.Fatalf("DiscoverAuthServerMetadata() error = %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("fetch count = %d, want 1 (cached)", hits.Load())
	}

	client.ClearMetadataCache()
	if _, err := client.DiscoverAuthServerMetadata(context.Background(), issuers, nil); err != nil {
		t.Fatalf("DiscoverAuthServerMetadata() after cache clear error = %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("fetch count = %d, want 2 after cache clear", hits.Load())
	}
}

func TestDiscoverResource(t *testing.T) {
	t.Run("challenge hinted metadata url", func(t *testing.T) {
		mux := http.NewServeMux()
		var serverURL string
		mux.HandleFunc("/meta", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{
				"resource": %q,
				"authorization_servers": ["https://as.example.com"],
				"scopes_supported": ["files"]
			}`, serverURL+"/mcp")
		})
		mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer resource_metadata=%q, scope="hinted"`, serverURL+"/meta"))
			w.WriteHeader(http.StatusUnauthorized)
		})
		server := httptest.NewServer(mux)
		defer server.Close()
		serverURL = server.URL

		client := NewClient()
		discovery := client.discoverResource(context.Background(), mustParseURL(t, server.URL+"/mcp"))

		if discovery.metadata == nil {
			t.Fatal("metadata = nil, want document from hinted URL")
		}
		if discovery.metadata.Resource != serverURL+"/mcp" {
			t.Errorf("metadata.Resource = %q", discovery.metadata.Resource)
		}
		if discovery.scopeHint != "hinted" {
			t.Errorf("scopeHint = %q, want %q", discovery.scopeHint, "hinted")
		}
	})

	t.Run("well-known fallback when hint fails", func(t *testing.T) {
		mux := http.NewServeMux()
		var serverURL string
		mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer resource_metadata=%q`, serverURL+"/missing"))
			w.WriteHeader(http.StatusUnauthorized)
		})
		mux.HandleFunc("/.well-known/oauth-protected-resource/mcp", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"authorization_servers": ["https://as.example.com"]}`)
		})
		server := httptest.NewServer(mux)
		defer server.Close()
		serverURL = server.URL

		client := NewClient()
		discovery := client.discoverResource(context.Background(), mustParseURL(t, server.URL+"/mcp"))

		if discovery.metadata == nil {
			t.Fatal("metadata = nil, want well-known fallback document")
		}
		if len(discovery.metadata.AuthorizationServers) != 1 {
			t.Errorf("AuthorizationServers = %v", discovery.metadata.AuthorizationServers)
		}
	})

	t.Run("no challenge and no metadata", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		client := NewClient()
		discovery := client.discoverResource(context.Background(), mustParseURL(t, server.URL+"/mcp"))

		if discovery.metadata != nil {
			t.Errorf("metadata = %+v, want nil", discovery.metadata)
		}
		if discovery.scopeHint != "" || discovery.authServerHint != "" {
			t.Errorf("hints = %q/%q, want empty", discovery.scopeHint, discovery.authServerHint)
		}
	})
}
