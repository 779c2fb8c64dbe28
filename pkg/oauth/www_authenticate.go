package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// remappedWWWAuthenticate is the header name CloudFront rewrites
// WWW-Authenticate to when proxying origin responses.
const remappedWWWAuthenticate = "X-Amzn-Remapped-WWW-Authenticate"

// ProbeChallenge issues a single unauthenticated GET against the resource
// and returns the Bearer challenge parsed from its response headers.
//
// Redirects are disabled: a redirect signals a different failure mode, not
// a challenge. Network failures are swallowed and reported as "no
// challenge" since the probe is best-effort; absence of a challenge must
// never block the flow.
func (c *Client) ProbeChallenge(ctx context.Context, resource *url.URL) *AuthChallenge {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resource.String(), nil)
	if err != nil {
		return nil
	}

	resp, err := c.probeClient.Do(req)
	if err != nil {
		c.logger.Debug("Challenge probe failed", "resource", resource.String(), "error", err)
		return nil
	}
	defer resp.Body.Close()

	for _, name := range []string{"WWW-Authenticate", remappedWWWAuthenticate} {
		for _, value := range resp.Header.Values(name) {
			if challenge := ParseBearerChallenge(value); challenge != nil {
				c.logger.Debug("Parsed Bearer challenge",
					"resource", resource.String(),
					"header", name,
					"scope", challenge.Scope,
					"resource_metadata", challenge.ResourceMetadataURL)
				return challenge
			}
		}
	}

	return nil
}

// ParseBearerChallenge parses a single WWW-Authenticate header value into
// an AuthChallenge. The scheme token is located case-insensitively;
// everything after it is treated as comma-separated key=value parameters,
// where values may be double-quoted and commas inside quotes do not
// split. Unrecognized keys are ignored.
//
// Returns nil when the value carries no Bearer scheme or none of the
// recognized parameters (resource_metadata, scope, authorization_server,
// resource).
func ParseBearerChallenge(value string) *AuthChallenge {
	lower := strings.ToLower(value)
	pos := strings.Index(lower, "bearer")
	if pos < 0 {
		return nil
	}

	params := strings.TrimSpace(value[pos+len("bearer"):])
	params = strings.TrimLeft(params, ",")

	challenge := &AuthChallenge{}
	for _, pair := range splitChallengeParams(params) {
		key, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val := strings.TrimSpace(rawValue)
		if len(val) >= 2 && strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			val = val[1 : len(val)-1]
		}

		switch key {
		case "resource_metadata":
			challenge.ResourceMetadataURL = val
		case "scope":
			challenge.Scope = val
		case "authorization_server":
			challenge.AuthorizationServer = val
		case "resource":
			challenge.Resource = val
		}
	}

	if challenge.IsEmpty() {
		return nil
	}
	return challenge
}

// splitChallengeParams splits the parameter portion of a Bearer challenge
// on commas that are outside double quotes.
func splitChallengeParams(params string) []string {
	var pairs []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range params {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			current.WriteRune(ch)
		case ch == ',' && !inQuotes:
			if pair := strings.TrimSpace(current.String()); pair != "" {
				pairs = append(pairs, pair)
			}
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	if pair := strings.TrimSpace(current.String()); pair != "" {
		pairs = append(pairs, pair)
	}

	return pairs
}
