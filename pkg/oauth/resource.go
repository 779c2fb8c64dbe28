package oauth

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL prepends a scheme when the raw URL is missing one.
// Localhost-style targets get http, everything else https.
func NormalizeURL(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	if strings.HasPrefix(raw, "localhost") || strings.HasPrefix(raw, "127.") || strings.Contains(raw, ":80") {
		return "http://" + raw
	}
	return "https://" + raw
}

// ResourceIdentifier canonicalizes a server URL into the stable resource
// identifier used as the OAuth resource parameter and as the basis for
// well-known metadata paths. Query and fragment are stripped and a
// trailing slash is trimmed; an empty path becomes "/".
//
// The function is pure: calling it twice on the same input yields
// byte-identical results.
func ResourceIdentifier(serverURL string) (*url.URL, error) {
	u, err := url.Parse(NormalizeURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse resource URL %q: %w", serverURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("resource URL %q has no host", serverURL)
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		u.Path = "/"
	} else {
		u.Path = path
	}
	u.RawPath = ""

	return u, nil
}

// resourceOrigin returns the issuer-of-last-resort for a resource: the
// same scheme and host with an empty path and no query or fragment.
func resourceOrigin(resource *url.URL) *url.URL {
	origin := *resource
	origin.Path = ""
	origin.RawPath = ""
	origin.RawQuery = ""
	origin.Fragment = ""
	origin.RawFragment = ""
	return &origin
}
