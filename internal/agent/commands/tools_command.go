package commands

import (
	"context"
	"strings"
)

// ToolsCommand lists the tools the bound server advertises.
type ToolsCommand struct {
	*BaseCommand
}

// NewToolsCommand creates a new tools command.
func NewToolsCommand(session SessionInterface, output OutputLogger) *ToolsCommand {
	return &ToolsCommand{
		BaseCommand: NewBaseCommand(session, output),
	}
}

// Execute fetches and displays the server's tool list, connecting first
// if the session is not connected yet.
func (t *ToolsCommand) Execute(ctx context.Context, args []string) error {
	tools, err := t.session.Tools(ctx)
	if err != nil {
		t.reportFailure("Failed to list tools", err)
		return nil
	}

	if len(tools) == 0 {
		t.output.OutputLine("The server advertises no tools.")
		return nil
	}

	t.output.OutputLine("Available tools (%d):", len(tools))
	for _, tool := range tools {
		desc := firstLine(tool.Description)
		if desc == "" {
			t.output.OutputLine("  %s", tool.Name)
			continue
		}
		t.output.OutputLine("  %-28s %s", tool.Name, desc)
	}

	return nil
}

// firstLine returns the first line of a description so multi-line tool
// docs do not break the list layout.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

// Usage returns the usage string.
func (t *ToolsCommand) Usage() string {
	return "tools"
}

// Description returns the command description.
func (t *ToolsCommand) Description() string {
	return "List the tools the server provides"
}

// Completions returns possible completions.
func (t *ToolsCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases.
func (t *ToolsCommand) Aliases() []string {
	return []string{"list", "ls"}
}
