package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// pkceVerifierBytes is the number of random bytes for the PKCE code
	// verifier. 32 bytes provides 256 bits of entropy.
	pkceVerifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state
	// parameter.
	stateBytes = 16
)

// GeneratePKCE generates a new PKCE code verifier and challenge.
// The code verifier is 32 random bytes, base64url-encoded without
// padding. The code challenge is the S256 (SHA256) hash of the verifier.
//
// A fresh pair is generated per flow; verifiers are never reused across
// retries.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
	}, nil
}

// GenerateState generates a random state parameter. The state links the
// authorization response back to the original request and prevents CSRF.
//
// Returns a base64url-encoded random string without padding.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
