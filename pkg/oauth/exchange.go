package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ExchangeCode exchanges an authorization code for a token using the
// pending authorization's verifier, redirect URI, and client identity.
// The client id used for the exchange is attached to the returned token
// so callers can cache it for future flows against the same server.
func (c *Client) ExchangeCode(ctx context.Context, pending *PendingAuthorization, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", pending.RedirectURI)
	form.Set("client_id", pending.ClientID)
	form.Set("code_verifier", pending.CodeVerifier)
	form.Set("resource", pending.ResourceValue)
	if pending.ClientSecret != "" {
		form.Set("client_secret", pending.ClientSecret)
	}

	token, err := c.doTokenRequest(ctx, pending.TokenEndpoint, form)
	if err != nil {
		return nil, err
	}

	token.ClientID = pending.ClientID
	c.logger.Debug("Exchanged authorization code for token",
		"token_endpoint", pending.TokenEndpoint,
		"client_id", pending.ClientID)
	return token, nil
}

// CompleteManual finishes a pending authorization from pasted user
// input, either a full redirect URL or a bare authorization code.
func (c *Client) CompleteManual(ctx context.Context, pending *PendingAuthorization, rawInput string) (*Token, error) {
	code, err := ExtractAuthorizationCode(rawInput)
	if err != nil {
		return nil, err
	}
	return c.ExchangeCode(ctx, pending, code)
}

// RefreshToken redeems a refresh token at the token endpoint. When the
// response omits a new refresh token the old one is carried forward.
func (c *Client) RefreshToken(ctx context.Context, tokenEndpoint, clientID, clientSecret, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)
	if clientSecret != "" {
		form.Set("client_secret", clientSecret)
	}

	token, err := c.doTokenRequest(ctx, tokenEndpoint, form)
	if err != nil {
		return nil, err
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	token.ClientID = clientID
	return token, nil
}

// doTokenRequest posts a form-encoded grant request to the token
// endpoint and parses the response. Non-2xx responses carry the raw body
// for diagnostics.
func (c *Client) doTokenRequest(ctx context.Context, tokenEndpoint string, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

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
		return nil, &TokenExchangeFailedError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	token.SetExpiresAtFromExpiresIn()

	return &token, nil
}

// ExtractAuthorizationCode pulls an authorization code out of pasted
// user input. URL-shaped input must carry a code query parameter;
// anything else is treated as a bare code after trimming.
func ExtractAuthorizationCode(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &InputParseError{}
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return "", &InputParseError{}
		}
		code := u.Query().Get("code")
		if code == "" {
			return "", &InputParseError{}
		}
		return code, nil
	}

	return trimmed, nil
}
