package oauth

import (
	"fmt"
	"time"
)

// CallbackTimeoutError indicates no callback arrived within the wait
// window. The pending authorization survives; the flow can still be
// finished through the manual completion path.
type CallbackTimeoutError struct {
	Timeout time.Duration
}

func (e *CallbackTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for OAuth callback (%ds)", int(e.Timeout.Seconds()))
}

// CallbackFailedError indicates the authorization server redirected back
// with an error parameter.
type CallbackFailedError struct {
	Code string
}

func (e *CallbackFailedError) Error() string {
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// StateMismatchError indicates the callback state did not match the
// pending flow's state. The pending authorization is discarded since the
// callback cannot be trusted.
type StateMismatchError struct{}

func (e *StateMismatchError) Error() string {
	return "OAuth state mismatch"
}

// MissingCodeError indicates the callback arrived without a code
// parameter.
type MissingCodeError struct{}

func (e *MissingCodeError) Error() string {
	return "OAuth callback missing code"
}

// NoPendingFlowError indicates a completion was attempted for a server
// with no prepared flow, either because none was started or because a
// failed attempt discarded it.
type NoPendingFlowError struct {
	ServerID string
}

func (e *NoPendingFlowError) Error() string {
	return fmt.Sprintf("no pending OAuth flow for %s, run login first", e.ServerID)
}
