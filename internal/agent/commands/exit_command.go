package commands

import (
	"context"
	"fmt"
)

// ExitCommand handles session exit.
type ExitCommand struct {
	*BaseCommand
}

// NewExitCommand creates a new exit command.
func NewExitCommand(session SessionInterface, output OutputLogger) *ExitCommand {
	return &ExitCommand{
		BaseCommand: NewBaseCommand(session, output),
	}
}

// Execute exits the session.
func (e *ExitCommand) Execute(ctx context.Context, args []string) error {
	// Special "exit" error signals the loop to shut down.
	return fmt.Errorf("exit")
}

// Usage returns the usage string.
func (e *ExitCommand) Usage() string {
	return "exit"
}

// Description returns the command description.
func (e *ExitCommand) Description() string {
	return "Exit the session"
}

// Completions returns possible completions.
func (e *ExitCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases.
func (e *ExitCommand) Aliases() []string {
	return []string{"quit", "q"}
}
