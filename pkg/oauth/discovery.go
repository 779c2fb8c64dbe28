package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	wellKnownProtectedResource = "/.well-known/oauth-protected-resource"
	wellKnownOAuthServer       = "/.well-known/oauth-authorization-server"
	wellKnownOpenIDConfig      = "/.well-known/openid-configuration"
)

// resourceDiscovery carries everything learned about a resource before
// authorization server discovery: the protected resource metadata (if any
// candidate URL produced one) and the hint fields from the Bearer
// challenge.
type resourceDiscovery struct {
	metadata       *ProtectedResourceMetadata
	scopeHint      string
	authServerHint string
	resourceHint   string
}

// discoverResource probes the resource for a Bearer challenge and fetches
// protected resource metadata. Both steps are best-effort: a missing
// challenge or an exhausted metadata candidate list yields an empty
// discovery, never an error.
func (c *Client) discoverResource(ctx context.Context, resource *url.URL) *resourceDiscovery {
	discovery := &resourceDiscovery{}

	if challenge := c.ProbeChallenge(ctx, resource); challenge != nil {
		discovery.scopeHint = challenge.Scope
		discovery.authServerHint = challenge.AuthorizationServer
		discovery.resourceHint = challenge.Resource

		if challenge.ResourceMetadataURL != "" {
			meta, err := c.fetchProtectedResourceMetadata(ctx, challenge.ResourceMetadataURL)
			if err == nil {
				discovery.metadata = meta
				return discovery
			}
			c.logger.Debug("Challenge-hinted resource metadata fetch failed",
				"url", challenge.ResourceMetadataURL,
				"error", err)
		}
	}

	for _, candidate := range resourceMetadataURLs(resource) {
		meta, err := c.fetchProtectedResourceMetadata(ctx, candidate.String())
		if err != nil {
			c.logger.Debug("Resource metadata candidate failed",
				"url", candidate.String(),
				"error", err)
			continue
		}
		discovery.metadata = meta
		break
	}

	return discovery
}

// resourceMetadataURLs returns the well-known protected resource metadata
// candidates for a resource: the path-scoped document first when the
// resource has a non-root path, then the document at the origin root.
func resourceMetadataURLs(resource *url.URL) []*url.URL {
	var urls []*url.URL

	path := strings.TrimRight(resource.Path, "/")
	if path != "" && path != "/" {
		withPath := *resource
		withPath.Path = wellKnownProtectedResource + path
		withPath.RawPath = ""
		withPath.RawQuery = ""
		withPath.Fragment = ""
		urls = append(urls, &withPath)
	}

	root := *resource
	root.Path = wellKnownProtectedResource
	root.RawPath = ""
	root.RawQuery = ""
	root.Fragment = ""
	urls = append(urls, &root)

	return urls
}

// fetchProtectedResourceMetadata fetches and parses one RFC 9728 metadata
// document.
func (c *Client) fetchProtectedResourceMetadata(ctx context.Context, metadataURL string) (*ProtectedResourceMetadata, error) {
	var meta ProtectedResourceMetadata
	if err := c.getJSON(ctx, metadataURL, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// IssuerCandidates builds the ordered issuer list for authorization
// server discovery: the challenge hint first, then every issuer the
// protected resource metadata declares, and finally, when both are
// empty, the resource's own origin as a last resort.
func IssuerCandidates(resource *url.URL, meta *ProtectedResourceMetadata, authServerHint string) []*url.URL {
	var issuers []*url.URL

	if authServerHint != "" && isHTTPURL(authServerHint) {
		if u, err := url.Parse(authServerHint); err == nil {
			issuers = append(issuers, u)
		}
	}

	if meta != nil {
		for _, server := range meta.AuthorizationServers {
			if !isHTTPURL(server) {
				continue
			}
			if u, err := url.Parse(server); err == nil {
				issuers = append(issuers, u)
			}
		}
	}

	if len(issuers) == 0 {
		issuers = append(issuers, resourceOrigin(resource))
	}

	return issuers
}

// DiscoverAuthServerMetadata resolves authorization server metadata for
// the given issuer candidates.
//
// When the flow config supplies both endpoints, discovery is skipped
// entirely: those two fields are necessary and sufficient, and the
// config's registration endpoint and scopes ride along. Otherwise each
// issuer is tried in order and the first success wins. Exhausting every
// issuer returns a DiscoveryExhaustedError aggregating the per-issuer
// failures.
func (c *Client) DiscoverAuthServerMetadata(ctx context.Context, issuers []*url.URL, cfg *FlowConfig) (*Metadata, error) {
	if cfg != nil && cfg.AuthorizationEndpoint != "" && cfg.TokenEndpoint != "" {
		return &Metadata{
			AuthorizationEndpoint: cfg.AuthorizationEndpoint,
			TokenEndpoint:         cfg.TokenEndpoint,
			RegistrationEndpoint:  cfg.RegistrationEndpoint,
			ScopesSupported:       cfg.Scopes,
		}, nil
	}

	var attempts []string
	for _, issuer := range issuers {
		metadata, err := c.discoverIssuerMetadata(ctx, issuer)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", issuer, err))
			continue
		}
		return metadata, nil
	}

	return nil, &DiscoveryExhaustedError{Attempts: attempts}
}

// discoverIssuerMetadata fetches metadata for a single issuer, caching
// successes with a TTL and deduplicating concurrent fetches for the same
// issuer through singleflight.
func (c *Client) discoverIssuerMetadata(ctx context.Context, issuer *url.URL) (*Metadata, error) {
	key := issuer.String()

	c.metadataMu.RLock()
	if entry, ok := c.metadataCache[key]; ok {
		if time.Since(entry.fetchedAt) < c.metadataTTL {
			c.metadataMu.RUnlock()
			return entry.metadata, nil
		}
	}
	c.metadataMu.RUnlock()

	result, err, _ := c.metadataGroup.Do(key, func() (interface{}, error) {
		// Double-check the cache after acquiring the singleflight slot.
		c.metadataMu.RLock()
		if entry, ok := c.metadataCache[key]; ok {
			if time.Since(entry.fetchedAt) < c.metadataTTL {
				c.metadataMu.RUnlock()
				return entry.metadata, nil
			}
		}
		c.metadataMu.RUnlock()

		return c.doDiscoverIssuerMetadata(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

// doDiscoverIssuerMetadata tries each well-known metadata URL for an
// issuer in order, returning the first document that fetches and parses.
func (c *Client) doDiscoverIssuerMetadata(ctx context.Context, issuer *url.URL) (*Metadata, error) {
	var attempts []string
	for _, candidate := range authServerMetadataURLs(issuer) {
		var metadata Metadata
		if err := c.getJSON(ctx, candidate.String(), &metadata); err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", candidate, err))
			continue
		}

		c.cacheMetadata(issuer.String(), &metadata)
		c.logger.Debug("Discovered authorization server metadata",
			"issuer", issuer.String(),
			"authorization_endpoint", metadata.AuthorizationEndpoint,
			"token_endpoint", metadata.TokenEndpoint)
		return &metadata, nil
	}

	return nil, fmt.Errorf("no metadata endpoint succeeded: %s", strings.Join(attempts, " | "))
}

// cacheMetadata stores issuer metadata in the TTL cache.
func (c *Client) cacheMetadata(key string, metadata *Metadata) {
	c.metadataMu.Lock()
	c.metadataCache[key] = &metadataCacheEntry{
		metadata:  metadata,
		fetchedAt: time.Now(),
	}
	c.metadataMu.Unlock()
}

// ClearMetadataCache clears the issuer metadata cache so the next
// discovery refetches.
func (c *Client) ClearMetadataCache() {
	c.metadataMu.Lock()
	c.metadataCache = make(map[string]*metadataCacheEntry)
	c.metadataMu.Unlock()
}

// authServerMetadataURLs returns the metadata URL candidates for an
// issuer. An issuer whose path already contains a well-known segment is
// used verbatim as the single candidate. Otherwise the RFC 8414 OAuth
// candidate comes first (it typically includes registration_endpoint,
// which OIDC documents often omit), then the OIDC candidate. The two
// deliberately use different placement rules per their specs: OAuth
// inserts the well-known segment at the origin, OIDC appends it to the
// issuer path.
func authServerMetadataURLs(issuer *url.URL) []*url.URL {
	if strings.Contains(issuer.Path, "/.well-known/") {
		verbatim := *issuer
		return []*url.URL{&verbatim}
	}
	return []*url.URL{oauthMetadataURL(issuer), oidcMetadataURL(issuer)}
}

// oauthMetadataURL builds the RFC 8414 metadata URL:
// <origin>/.well-known/oauth-authorization-server<issuer-path>.
func oauthMetadataURL(issuer *url.URL) *url.URL {
	path := strings.TrimRight(issuer.Path, "/")

	u := *issuer
	u.RawQuery = ""
	u.Fragment = ""
	u.RawPath = ""
	if path == "" {
		u.Path = wellKnownOAuthServer
	} else {
		u.Path = wellKnownOAuthServer + path
	}
	return &u
}

// oidcMetadataURL builds the OpenID Connect discovery URL:
// <issuer>/.well-known/openid-configuration (path-preserving).
func oidcMetadataURL(issuer *url.URL) *url.URL {
	path := strings.TrimRight(issuer.Path, "/")

	u := *issuer
	u.RawQuery = ""
	u.Fragment = ""
	u.RawPath = ""
	if path == "" {
		u.Path = wellKnownOpenIDConfig
	} else {
		u.Path = path + wellKnownOpenIDConfig
	}
	return &u
}

// defaultRegistrationEndpoint derives a registration endpoint from the
// authorization endpoint when metadata declared none: same origin, path
// /register.
func defaultRegistrationEndpoint(authorizationEndpoint string) string {
	u, err := url.Parse(authorizationEndpoint)
	if err != nil {
		return ""
	}
	u.Path = "/register"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// ResolveScope resolves the scope string for the authorization request.
// First non-empty wins: the challenge scope hint, then statically
// configured scopes (space-joined; a configured empty list still counts
// as configured), then the resource metadata's scopes_supported.
//
// The authorization server's scopes_supported is deliberately never
// consulted. Broad server-advertised scopes like offline_access can
// trigger an incompatible authorization flow on some servers, so only
// resource-scoped hints are trusted.
func ResolveScope(scopeHint string, configScopes []string, meta *ProtectedResourceMetadata) string {
	if scopeHint != "" {
		return scopeHint
	}
	if configScopes != nil {
		return strings.Join(configScopes, " ")
	}
	if meta != nil && len(meta.ScopesSupported) > 0 {
		return strings.Join(meta.ScopesSupported, " ")
	}
	return ""
}

// getJSON fetches a URL with the MCP protocol version header and decodes
// the JSON response into out. Non-2xx statuses surface the body in the
// error for diagnostics.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("MCP-Protocol-Version", ProtocolVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
