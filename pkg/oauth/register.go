package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// clientName is the client_name sent during dynamic registration.
const clientName = "gatepass"

// registrationAuthMethods is the ordered list of token endpoint auth
// methods attempted during dynamic registration. Public clients without
// a secret come first; servers that insist on a secret get
// client_secret_post as the fallback.
var registrationAuthMethods = []string{"none", "client_secret_post"}

// RegisterClient performs RFC 7591 dynamic client registration against
// the given endpoint, trying each supported auth method in order. The
// first successful registration wins. If every method fails, the
// per-method failures are aggregated into a RegistrationFailedError.
func (c *Client) RegisterClient(ctx context.Context, registrationEndpoint, redirectURI string) (*ClientRegistrationResponse, error) {
	var attempts []string
	for _, method := range registrationAuthMethods {
		registration, err := c.registerWithMethod(ctx, registrationEndpoint, redirectURI, method)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", method, err))
			continue
		}
		c.logger.Debug("Registered OAuth client",
			"endpoint", registrationEndpoint,
			"auth_method", method,
			"client_id", registration.ClientID)
		return registration, nil
	}

	return nil, &RegistrationFailedError{Attempts: attempts}
}

// registerWithMethod posts one registration request with the given token
// endpoint auth method.
func (c *Client) registerWithMethod(ctx context.Context, registrationEndpoint, redirectURI, authMethod string) (*ClientRegistrationResponse, error) {
	request := ClientRegistrationRequest{
		ClientName:              clientName,
		RedirectURIs:            []string{redirectURI},
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		ApplicationType:         "native",
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("MCP-Protocol-Version", ProtocolVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var registration ClientRegistrationResponse
	if err := json.Unmarshal(body, &registration); err != nil {
		return nil, fmt.Errorf("failed to parse registration response: %w", err)
	}

	if registration.ClientID == "" {
		return nil, fmt.Errorf("registration response missing client_id")
	}

	return &registration, nil
}
