package mcpclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

// AuthRequiredError indicates the server rejected the connection because
// no valid credentials were presented. Callers map this to the
// auth-required exit code and point the user at the login flow.
type AuthRequiredError struct {
	ServerID  string
	ServerURL string
	Err       error
}

// Error implements the error interface.
func (e *AuthRequiredError) Error() string {
	if e.ServerID != "" {
		return fmt.Sprintf("server %q requires authentication", e.ServerID)
	}
	return fmt.Sprintf("server %s requires authentication", e.ServerURL)
}

// Unwrap returns the underlying transport error.
func (e *AuthRequiredError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err indicates a 401 from the server or
// a missing stored token.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}

	if client.IsOAuthAuthorizationRequiredError(err) {
		return true
	}
	if errors.Is(err, transport.ErrNoToken) {
		return true
	}

	// Transport errors are not always typed; fall back to the common
	// patterns servers put in 401 bodies.
	patterns := []string{
		"401",
		"unauthorized",
		"invalid_token",
	}

	errLower := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(errLower, pattern) {
			return true
		}
	}

	return false
}
