package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helpTestRegistry(session SessionInterface, output OutputLogger) *Registry {
	registry := NewRegistry()
	registry.Register("tools", NewToolsCommand(session, output))
	registry.Register("call", NewCallCommand(session, output))
	registry.Register("auth", NewLoginCommand(session, output))
	registry.Register("status", NewStatusCommand(session, output))
	registry.Register("help", NewHelpCommand(session, output, registry))
	return registry
}

func TestHelpCommand_General(t *testing.T) {
	session := &mockSession{}
	output := &mockOutput{}
	cmd := NewHelpCommand(session, output, helpTestRegistry(session, output))

	err := cmd.Execute(context.Background(), []string{})

	require.NoError(t, err)
	assert.Contains(t, output.joined(), "Available commands:")
	assert.Contains(t, output.joined(), "call <tool> [args]")
	assert.Contains(t, output.joined(), "code <url-or-code>")
	assert.Contains(t, output.joined(), "Keyboard shortcuts:")
	assert.Contains(t, output.joined(), "Examples:")
}

func TestHelpCommand_SpecificCommand(t *testing.T) {
	session := &mockSession{}
	output := &mockOutput{}
	cmd := NewHelpCommand(session, output, helpTestRegistry(session, output))

	err := cmd.Execute(context.Background(), []string{"call"})

	require.NoError(t, err)
	assert.Contains(t, output.joined(), "Command: call")
	assert.Contains(t, output.joined(), "Usage: call <tool>")
	assert.Contains(t, output.joined(), "Aliases: [run exec]")
}

func TestHelpCommand_ByAlias(t *testing.T) {
	session := &mockSession{}
	output := &mockOutput{}
	cmd := NewHelpCommand(session, output, helpTestRegistry(session, output))

	err := cmd.Execute(context.Background(), []string{"login"})

	require.NoError(t, err)
	assert.Contains(t, output.joined(), "Description: Log in to the server with OAuth")
}

func TestHelpCommand_Unknown(t *testing.T) {
	session := &mockSession{}
	output := &mockOutput{}
	cmd := NewHelpCommand(session, output, helpTestRegistry(session, output))

	err := cmd.Execute(context.Background(), []string{"bogus"})

	require.NoError(t, err)
	assert.Contains(t, output.joined(), "ERROR: Unknown command: bogus")
}

func TestRegistry_GetByAlias(t *testing.T) {
	session := &mockSession{}
	output := &mockOutput{}
	registry := helpTestRegistry(session, output)

	cmd, ok := registry.Get("run")
	require.True(t, ok)
	assert.IsType(t, &CallCommand{}, cmd)

	_, ok = registry.Get("bogus")
	assert.False(t, ok)
}

func TestRegistry_AllCompletions(t *testing.T) {
	session := &mockSession{}
	output := &mockOutput{}
	registry := helpTestRegistry(session, output)

	completions := registry.AllCompletions()

	assert.Contains(t, completions, "tools")
	assert.Contains(t, completions, "ls")
	assert.Contains(t, completions, "login")
	assert.Contains(t, completions, "?")
}

func TestExitCommand(t *testing.T) {
	cmd := NewExitCommand(&mockSession{}, &mockOutput{})

	err := cmd.Execute(context.Background(), []string{})

	require.Error(t, err)
	assert.Equal(t, "exit", err.Error())
	assert.Contains(t, cmd.Aliases(), "quit")
}
