package commands

import (
	"context"
	"errors"
	"time"

	"gatepass/internal/oauth"
)

// loginWaitTimeout bounds the callback wait. Shorter than the session's
// command timeout so the timeout guidance, not a dead context, reaches
// the user.
const loginWaitTimeout = 3 * time.Minute

// LoginCommand runs the OAuth authorization flow for the bound server:
// it prepares the flow, opens the browser, waits for the loopback
// callback, and reconnects with the fresh token.
type LoginCommand struct {
	*BaseCommand
}

// NewLoginCommand creates a new login command.
func NewLoginCommand(session SessionInterface, output OutputLogger) *LoginCommand {
	return &LoginCommand{
		BaseCommand: NewBaseCommand(session, output),
	}
}

// Execute runs the login flow.
func (l *LoginCommand) Execute(ctx context.Context, args []string) error {
	if l.session.UsesStaticBearer() {
		l.output.OutputLine("%s uses a pre-issued bearer token; no login needed.", l.session.ServerID())
		return nil
	}

	flow, err := l.session.StartLogin(ctx)
	if err != nil {
		l.output.Error("Login failed: %v", err)
		return nil
	}

	l.output.OutputLine("Opening browser for authorization...")
	if err := l.session.OpenBrowser(flow.AuthorizationURL); err != nil {
		l.output.Debug("Browser launch failed: %v", err)
	}
	l.output.OutputLine("If the browser does not open, visit:")
	l.output.OutputLine("  %s", flow.AuthorizationURL)

	l.output.Info("Waiting for the authorization callback on %s", flow.Pending.RedirectURI)

	token, err := l.session.WaitForCallback(ctx, loginWaitTimeout)
	if err != nil {
		var timeoutErr *oauth.CallbackTimeoutError
		if errors.As(err, &timeoutErr) {
			l.output.Error("Timed out waiting for the authorization callback.")
			l.output.OutputLine("The flow is still pending. After authorizing in the browser,")
			l.output.OutputLine("paste the redirect URL or the code:")
			l.output.OutputLine("  code <redirect-url-or-code>")
			return nil
		}
		l.output.Error("Login failed: %v", err)
		return nil
	}

	l.output.Debug("Token obtained (scope: %q)", token.Scope)
	l.output.Success("Logged in to %s", l.session.ServerID())

	l.reconnectAfterLogin(ctx)
	return nil
}

// reconnectAfterLogin re-establishes the MCP connection with the new
// credentials. A failure here leaves the token stored; only the
// connection attempt is reported.
func (l *LoginCommand) reconnectAfterLogin(ctx context.Context) {
	if err := l.session.Reconnect(ctx); err != nil {
		l.output.Error("Reconnect failed: %v", err)
		return
	}

	name, version := l.session.ServerInfo()
	l.output.Success("Connected to %s %s", name, version)
}

// Usage returns the usage string.
func (l *LoginCommand) Usage() string {
	return "auth"
}

// Description returns the command description.
func (l *LoginCommand) Description() string {
	return "Log in to the server with OAuth"
}

// Completions returns possible completions.
func (l *LoginCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases.
func (l *LoginCommand) Aliases() []string {
	return []string{"login"}
}
