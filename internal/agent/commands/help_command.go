package commands

import (
	"context"
	"strings"
)

// HelpCommand shows available commands and usage information.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates a new help command.
func NewHelpCommand(session SessionInterface, output OutputLogger, registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand(session, output),
		registry:    registry,
	}
}

// Execute shows help information.
func (h *HelpCommand) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		h.showGeneralHelp()
		return nil
	}

	commandName := strings.ToLower(args[0])
	if commandName == "?" {
		commandName = "help"
	}

	command, exists := h.registry.Get(commandName)
	if !exists {
		h.output.Error("Unknown command: %s", commandName)
		h.output.OutputLine("Use 'help' to see all available commands.")
		return nil
	}

	h.showCommandHelp(commandName, command)
	return nil
}

// showGeneralHelp displays the general help message.
func (h *HelpCommand) showGeneralHelp() {
	h.output.OutputLine("Available commands:")
	h.output.OutputLine("  tools                        - List the tools the server provides")
	h.output.OutputLine("  call <tool> [args]           - Execute a tool (JSON or key=value arguments)")
	h.output.OutputLine("  auth                         - Log in to the server with OAuth")
	h.output.OutputLine("  code <url-or-code>           - Finish a pending login manually")
	h.output.OutputLine("  status                       - Show connection and token status")
	h.output.OutputLine("  logout                       - Delete the stored token")
	h.output.OutputLine("  help, ?                      - Show this help message")
	h.output.OutputLine("  exit, quit                   - Exit the session")
	h.output.OutputLine("")
	h.output.OutputLine("Keyboard shortcuts:")
	h.output.OutputLine("  TAB                          - Auto-complete commands and arguments")
	h.output.OutputLine("  ↑/↓ (arrow keys)             - Navigate command history")
	h.output.OutputLine("  Ctrl+R                       - Search command history")
	h.output.OutputLine("  Ctrl+C                       - Cancel current line")
	h.output.OutputLine("  Ctrl+D                       - Exit the session")
	h.output.OutputLine("")
	h.output.OutputLine("Examples:")
	h.output.OutputLine("  call echo {\"text\": \"hello\"}")
	h.output.OutputLine("  call search query=docs limit=5")
	h.output.OutputLine("  code http://127.0.0.1:51234/callback?code=abc&state=xyz")
}

// showCommandHelp displays help for a specific command.
func (h *HelpCommand) showCommandHelp(commandName string, cmd Command) {
	h.output.OutputLine("Command: %s", commandName)
	h.output.OutputLine("Description: %s", cmd.Description())
	h.output.OutputLine("Usage: %s", cmd.Usage())

	aliases := cmd.Aliases()
	if len(aliases) > 0 {
		h.output.OutputLine("Aliases: %v", aliases)
	}
}

// Usage returns the usage string.
func (h *HelpCommand) Usage() string {
	return "help [command]"
}

// Description returns the command description.
func (h *HelpCommand) Description() string {
	return "Show help information for commands"
}

// Completions returns possible completions.
func (h *HelpCommand) Completions(input string) []string {
	return h.registry.AllCompletions()
}

// Aliases returns command aliases.
func (h *HelpCommand) Aliases() []string {
	return []string{"?"}
}
