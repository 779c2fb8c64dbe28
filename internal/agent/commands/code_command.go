package commands

import (
	"context"
)

// CodeCommand finishes a pending login manually from a pasted redirect
// URL or a bare authorization code. This is the fallback when the
// loopback callback never arrives, such as flows run over SSH or in a
// container.
type CodeCommand struct {
	*BaseCommand
}

// NewCodeCommand creates a new code command.
func NewCodeCommand(session SessionInterface, output OutputLogger) *CodeCommand {
	return &CodeCommand{
		BaseCommand: NewBaseCommand(session, output),
	}
}

// Execute completes the pending flow with the pasted input.
func (c *CodeCommand) Execute(ctx context.Context, args []string) error {
	parsed, err := c.parseArgs(args, 1, c.Usage())
	if err != nil {
		return err
	}

	if !c.session.HasPendingFlow() {
		c.output.Error("No pending login for %s", c.session.ServerID())
		c.output.OutputLine("Run 'auth' to start one.")
		return nil
	}

	input := c.joinArgsFrom(parsed, 0)

	token, err := c.session.CompleteWithInput(ctx, input)
	if err != nil {
		c.output.Error("Could not complete the login: %v", err)
		if c.session.HasPendingFlow() {
			c.output.OutputLine("The flow is still pending; paste the full redirect URL or the code.")
		} else {
			c.output.OutputLine("The flow was discarded. Run 'auth' to start over.")
		}
		return nil
	}

	c.output.Debug("Token obtained (scope: %q)", token.Scope)
	c.output.Success("Logged in to %s", c.session.ServerID())

	if err := c.session.Reconnect(ctx); err != nil {
		c.output.Error("Reconnect failed: %v", err)
		return nil
	}

	name, version := c.session.ServerInfo()
	c.output.Success("Connected to %s %s", name, version)
	return nil
}

// Usage returns the usage string.
func (c *CodeCommand) Usage() string {
	return "code <redirect-url-or-code>"
}

// Description returns the command description.
func (c *CodeCommand) Description() string {
	return "Finish a pending login with a pasted redirect URL or code"
}

// Completions returns possible completions.
func (c *CodeCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases.
func (c *CodeCommand) Aliases() []string {
	return []string{"complete"}
}
