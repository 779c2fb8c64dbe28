// Package commands provides the command implementations for the
// interactive session.
//
// Each command implements the Command interface, enabling a registry
// pattern with alias resolution and per-command tab completion. Commands
// are responsible for their own argument parsing, execution, and output.
package commands

import (
	"context"
)

// Command represents a session command that can be executed interactively.
type Command interface {
	// Execute runs the command with the given arguments
	Execute(ctx context.Context, args []string) error

	// Usage returns the usage string for the command
	Usage() string

	// Description returns a brief description of what the command does
	Description() string

	// Completions returns possible completions for the command.
	// The input parameter is the current partial input for context
	Completions(input string) []string

	// Aliases returns alternative names for this command
	Aliases() []string
}

// OutputLogger defines the interface for structured command output.
// This separates user-facing output from system logging.
type OutputLogger interface {
	// User-facing output (no timestamps)
	Output(format string, args ...interface{})
	OutputLine(format string, args ...interface{})

	// System messages (timestamped)
	Info(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
	Success(format string, args ...interface{})

	// Configuration
	SetVerbose(verbose bool)
}

// Registry manages available commands for the session.
type Registry struct {
	commands map[string]Command
	aliases  map[string]string // alias -> primary command name
}

// NewRegistry creates a new command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(name string, cmd Command) {
	r.commands[name] = cmd

	for _, alias := range cmd.Aliases() {
		r.aliases[alias] = name
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) (Command, bool) {
	if cmd, exists := r.commands[name]; exists {
		return cmd, true
	}

	if primary, exists := r.aliases[name]; exists {
		if cmd, exists := r.commands[primary]; exists {
			return cmd, true
		}
	}

	return nil, false
}

// List returns all registered command names.
func (r *Registry) List() []string {
	var names []string
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}

// AllCompletions returns all command names and aliases.
func (r *Registry) AllCompletions() []string {
	var completions []string

	for name := range r.commands {
		completions = append(completions, name)
	}
	for alias := range r.aliases {
		completions = append(completions, alias)
	}

	return completions
}
