package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"gatepass/internal/mcpclient"
	"gatepass/internal/oauth"
	pkgoauth "gatepass/pkg/oauth"
)

// SessionInterface defines what commands need from the session. It
// abstracts the single-server session the REPL is bound to, enabling
// command tests to run against a fake without a live MCP server or a
// real browser.
type SessionInterface interface {
	// Identity of the bound server
	ServerID() string
	ServerURL() string

	// Connection state
	Connected() bool
	ServerInfo() (name, version string)
	Reconnect(ctx context.Context) error

	// Tool operations. Tools connects on demand and caches the result;
	// CachedTools returns the cache without touching the network.
	Tools(ctx context.Context) ([]mcp.Tool, error)
	CachedTools() []mcp.Tool
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)

	// Authorization lifecycle
	UsesStaticBearer() bool
	StartLogin(ctx context.Context) (*pkgoauth.PreparedFlow, error)
	WaitForCallback(ctx context.Context, timeout time.Duration) (*pkgoauth.Token, error)
	CompleteWithInput(ctx context.Context, input string) (*pkgoauth.Token, error)
	HasPendingFlow() bool
	Token() *oauth.StoredToken
	Logout() error

	// OpenBrowser opens the system browser at the given URL.
	OpenBrowser(url string) error
}

// BaseCommand provides common functionality for all session commands:
// dependency injection for the session and output logger, argument
// parsing utilities, and shared completion helpers.
type BaseCommand struct {
	session SessionInterface
	output  OutputLogger
}

// NewBaseCommand creates a new base command with the given dependencies.
func NewBaseCommand(session SessionInterface, output OutputLogger) *BaseCommand {
	return &BaseCommand{
		session: session,
		output:  output,
	}
}

// parseArgs validates command arguments against minimum requirements and
// generates a usage message when validation fails.
func (b *BaseCommand) parseArgs(args []string, minArgs int, usage string) ([]string, error) {
	if len(args) < minArgs {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	return args, nil
}

// joinArgsFrom joins arguments starting from a specific index into a
// single string. Useful for free-form text or JSON arguments.
func (b *BaseCommand) joinArgsFrom(args []string, index int) string {
	if index >= len(args) {
		return ""
	}
	return strings.Join(args[index:], " ")
}

// reportFailure prints an operation failure. Authentication errors get
// an actionable hint pointing at the login command instead of the raw
// transport error.
func (b *BaseCommand) reportFailure(action string, err error) {
	var authErr *mcpclient.AuthRequiredError
	if errors.As(err, &authErr) {
		b.output.Error("Authentication required for %s", b.session.ServerID())
		b.output.OutputLine("Run 'auth' to log in, then try again.")
		return
	}
	b.output.Error("%s: %v", action, err)
}

// getToolCompletions returns tool name completions from the session cache.
func (b *BaseCommand) getToolCompletions() []string {
	tools := b.session.CachedTools()
	var completions []string
	for _, tool := range tools {
		completions = append(completions, tool.Name)
	}
	return completions
}

// stripQuotes removes surrounding single or double quotes from a string.
// This handles the common shell habit of quoting values.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// parseKeyValueArgsToStringMap parses arguments in key=value format into
// a string map. Arguments without '=' are logged at debug level and
// skipped.
func parseKeyValueArgsToStringMap(args []string, output OutputLogger) map[string]string {
	params := make(map[string]string)

	for _, arg := range args {
		if !strings.Contains(arg, "=") {
			if output != nil {
				output.Debug("Ignoring argument without '=': %s", arg)
			}
			continue
		}

		parts := strings.SplitN(arg, "=", 2)
		if len(parts) == 2 {
			key := parts[0]
			value := stripQuotes(parts[1])
			params[key] = value
		}
	}

	return params
}

// parseKeyValueArgsToInterfaceMap parses key=value arguments with JSON
// type coercion: values that parse as JSON become numbers, booleans,
// arrays, or objects; everything else stays a string.
func parseKeyValueArgsToInterfaceMap(args []string, output OutputLogger) map[string]interface{} {
	stringMap := parseKeyValueArgsToStringMap(args, output)
	params := make(map[string]interface{})

	for key, value := range stringMap {
		var jsonValue interface{}
		if err := json.Unmarshal([]byte(value), &jsonValue); err == nil {
			params[key] = jsonValue
		} else {
			params[key] = value
		}
	}

	return params
}

// findToolByName looks up a tool by name. Uses index-based iteration for
// safe pointer handling.
func findToolByName(tools []mcp.Tool, name string) *mcp.Tool {
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i]
		}
	}
	return nil
}

// getToolParamNames returns all parameter names for a tool, sorted
// alphabetically.
func getToolParamNames(tool *mcp.Tool) []string {
	if tool == nil || len(tool.InputSchema.Properties) == 0 {
		return nil
	}

	var params []string
	for name := range tool.InputSchema.Properties {
		params = append(params, name)
	}
	sort.Strings(params)
	return params
}
