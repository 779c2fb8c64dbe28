package oauth

import (
	"fmt"
	"strings"
)

// DiscoveryExhaustedError is returned when every issuer candidate failed
// metadata discovery. Attempts holds one "issuer: error" entry per
// candidate so callers can show which URLs were tried.
type DiscoveryExhaustedError struct {
	Attempts []string
}

// Error implements the error interface.
func (e *DiscoveryExhaustedError) Error() string {
	return "failed to discover OAuth metadata. Tried: " + strings.Join(e.Attempts, " | ")
}

// RegistrationFailedError is returned when dynamic client registration
// failed for every token endpoint auth method. Attempts holds one
// "method: error" entry per attempt.
type RegistrationFailedError struct {
	Attempts []string
}

// Error implements the error interface.
func (e *RegistrationFailedError) Error() string {
	return "client registration failed. Tried: " + strings.Join(e.Attempts, " | ")
}

// NoClientAvailableError is returned when no client_id was supplied and
// the authorization server offers no registration endpoint.
type NoClientAvailableError struct{}

// Error implements the error interface.
func (e *NoClientAvailableError) Error() string {
	return "no client_id available and dynamic registration not supported"
}

// TokenExchangeFailedError is returned when the token endpoint answered
// with a non-2xx status. The raw response body is attached for
// diagnostics.
type TokenExchangeFailedError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *TokenExchangeFailedError) Error() string {
	return fmt.Sprintf("token exchange failed: %s", e.Body)
}

// InputParseError is returned when manually pasted input contained no
// extractable authorization code.
type InputParseError struct{}

// Error implements the error interface.
func (e *InputParseError) Error() string {
	return "no authorization code found in input"
}
