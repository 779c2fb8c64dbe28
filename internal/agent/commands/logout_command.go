package commands

import (
	"context"
)

// LogoutCommand deletes the stored token for the bound server. The
// cached client registration is kept so the next login skips
// re-registration.
type LogoutCommand struct {
	*BaseCommand
}

// NewLogoutCommand creates a new logout command.
func NewLogoutCommand(session SessionInterface, output OutputLogger) *LogoutCommand {
	return &LogoutCommand{
		BaseCommand: NewBaseCommand(session, output),
	}
}

// Execute deletes the stored token.
func (l *LogoutCommand) Execute(ctx context.Context, args []string) error {
	if l.session.UsesStaticBearer() {
		l.output.OutputLine("%s uses a pre-issued bearer token; nothing to log out.", l.session.ServerID())
		return nil
	}

	if l.session.Token() == nil {
		l.output.OutputLine("No stored token for %s.", l.session.ServerID())
		return nil
	}

	if err := l.session.Logout(); err != nil {
		l.output.Error("Logout failed: %v", err)
		return nil
	}

	l.output.Success("Logged out of %s", l.session.ServerID())
	return nil
}

// Usage returns the usage string.
func (l *LogoutCommand) Usage() string {
	return "logout"
}

// Description returns the command description.
func (l *LogoutCommand) Description() string {
	return "Delete the stored token for the server"
}

// Completions returns possible completions.
func (l *LogoutCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases.
func (l *LogoutCommand) Aliases() []string {
	return []string{}
}
