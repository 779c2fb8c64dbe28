package commands

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// CallCommand executes a tool on the bound server.
type CallCommand struct {
	*BaseCommand
}

// NewCallCommand creates a new call command.
func NewCallCommand(session SessionInterface, output OutputLogger) *CallCommand {
	return &CallCommand{
		BaseCommand: NewBaseCommand(session, output),
	}
}

// Execute calls a tool with the given arguments. Arguments are either a
// single JSON object or key=value pairs with JSON type coercion.
func (c *CallCommand) Execute(ctx context.Context, args []string) error {
	parsed, err := c.parseArgs(args, 1, c.Usage())
	if err != nil {
		return err
	}

	toolName := parsed[0]
	toolArgs, ok := c.parseToolArgs(toolName, parsed[1:])
	if !ok {
		return nil
	}

	if cached := c.session.CachedTools(); len(cached) > 0 && findToolByName(cached, toolName) == nil {
		c.output.Debug("Tool %s is not in the cached tool list; calling anyway", toolName)
	}

	c.output.Info("Calling tool: %s...", toolName)

	result, err := c.session.CallTool(ctx, toolName, toolArgs)
	if err != nil {
		c.reportFailure("Tool call failed", err)
		return nil
	}

	if result.IsError {
		c.output.OutputLine("Tool returned an error:")
		for _, content := range result.Content {
			if textContent, ok := mcp.AsTextContent(content); ok {
				c.output.OutputLine("  %s", textContent.Text)
			}
		}
		return nil
	}

	c.output.OutputLine("Result:")
	for _, content := range result.Content {
		switch v := content.(type) {
		case mcp.TextContent:
			c.printText(v.Text)
		case mcp.ImageContent:
			c.output.OutputLine("[Image: MIME type %s, %d bytes]", v.MIMEType, len(v.Data))
		case mcp.AudioContent:
			c.output.OutputLine("[Audio: MIME type %s, %d bytes]", v.MIMEType, len(v.Data))
		default:
			c.output.OutputLine("%+v", content)
		}
	}

	return nil
}

// parseToolArgs parses the argument words following the tool name. A
// leading '{' selects JSON object parsing; anything else is treated as
// key=value pairs. Returns false when the input could not be parsed,
// after printing guidance.
func (c *CallCommand) parseToolArgs(toolName string, args []string) (map[string]interface{}, bool) {
	if len(args) == 0 {
		return map[string]interface{}{}, true
	}

	joined := c.joinArgsFrom(args, 0)
	if strings.HasPrefix(joined, "{") {
		var toolArgs map[string]interface{}
		if err := json.Unmarshal([]byte(joined), &toolArgs); err != nil {
			c.output.Error("Arguments must be a valid JSON object")
			c.output.OutputLine("Example: call %s {\"param\": \"value\"}", toolName)
			c.suggestParams(toolName)
			return nil, false
		}
		return toolArgs, true
	}

	return parseKeyValueArgsToInterfaceMap(args, c.output), true
}

// suggestParams prints the known parameter names for a tool, when the
// tool list has been fetched.
func (c *CallCommand) suggestParams(toolName string) {
	tool := findToolByName(c.session.CachedTools(), toolName)
	params := getToolParamNames(tool)
	if len(params) == 0 {
		return
	}
	c.output.OutputLine("Parameters for %s: %s", toolName, strings.Join(params, ", "))
}

// printText prints a text content block, pretty-printing it when it is
// valid JSON.
func (c *CallCommand) printText(text string) {
	var jsonObj interface{}
	if err := json.Unmarshal([]byte(text), &jsonObj); err == nil {
		if b, err := json.MarshalIndent(jsonObj, "", "  "); err == nil {
			c.output.OutputLine("%s", string(b))
			return
		}
	}
	c.output.OutputLine("%s", text)
}

// Usage returns the usage string.
func (c *CallCommand) Usage() string {
	return "call <tool> [{json} | key=value ...]"
}

// Description returns the command description.
func (c *CallCommand) Description() string {
	return "Execute a tool with JSON or key=value arguments"
}

// Completions returns possible completions.
func (c *CallCommand) Completions(input string) []string {
	return c.getToolCompletions()
}

// Aliases returns command aliases.
func (c *CallCommand) Aliases() []string {
	return []string{"run", "exec"}
}
