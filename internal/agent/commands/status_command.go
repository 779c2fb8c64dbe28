package commands

import (
	"context"
	"fmt"
	"time"
)

// StatusCommand shows the connection and authorization state of the
// bound server.
type StatusCommand struct {
	*BaseCommand
}

// NewStatusCommand creates a new status command.
func NewStatusCommand(session SessionInterface, output OutputLogger) *StatusCommand {
	return &StatusCommand{
		BaseCommand: NewBaseCommand(session, output),
	}
}

// Execute displays the session status.
func (s *StatusCommand) Execute(ctx context.Context, args []string) error {
	s.output.OutputLine("Server:     %s", s.session.ServerID())
	s.output.OutputLine("URL:        %s", s.session.ServerURL())

	if s.session.Connected() {
		name, version := s.session.ServerInfo()
		s.output.OutputLine("Connection: connected (%s %s)", name, version)
	} else {
		s.output.OutputLine("Connection: not connected")
	}

	s.printAuthStatus()

	if s.session.HasPendingFlow() {
		s.output.OutputLine("Pending:    login flow awaiting completion ('code <url-or-code>')")
	}

	return nil
}

// printAuthStatus prints one Auth line plus scope and client lines when
// a stored token carries them.
func (s *StatusCommand) printAuthStatus() {
	if s.session.UsesStaticBearer() {
		s.output.OutputLine("Auth:       pre-issued bearer token")
		return
	}

	token := s.session.Token()
	if token == nil {
		s.output.OutputLine("Auth:       no stored token")
		return
	}

	s.output.OutputLine("Auth:       token %s", describeExpiry(token.ExpiresAt, token.IsExpired()))
	if token.Scope != "" {
		s.output.OutputLine("Scope:      %s", token.Scope)
	}
	if token.ClientID != "" {
		s.output.OutputLine("Client:     %s", token.ClientID)
	}
	if token.RefreshToken != "" {
		s.output.OutputLine("Refresh:    available")
	}
}

// describeExpiry renders the expiry state of a stored token.
func describeExpiry(expiresAt time.Time, expired bool) string {
	if expiresAt.IsZero() {
		return "valid (no expiry)"
	}
	if expired {
		return "expired " + formatDuration(time.Since(expiresAt)) + " ago"
	}
	return "valid, expires in " + formatDuration(time.Until(expiresAt))
}

// formatDuration renders a duration in a compact human form, dropping
// sub-second noise.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// Usage returns the usage string.
func (s *StatusCommand) Usage() string {
	return "status"
}

// Description returns the command description.
func (s *StatusCommand) Description() string {
	return "Show connection and token status"
}

// Completions returns possible completions.
func (s *StatusCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases.
func (s *StatusCommand) Aliases() []string {
	return []string{"st"}
}
