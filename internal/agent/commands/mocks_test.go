package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"gatepass/internal/oauth"
	pkgoauth "gatepass/pkg/oauth"
)

// mockSession implements SessionInterface for command tests.
type mockSession struct {
	serverID      string
	serverURL     string
	connected     bool
	serverName    string
	serverVersion string

	tools    []mcp.Tool
	toolsErr error
	cached   []mcp.Tool

	callResult *mcp.CallToolResult
	callErr    error
	calledTool string
	calledArgs map[string]interface{}

	staticBearer bool

	flow     *pkgoauth.PreparedFlow
	startErr error

	waitToken *pkgoauth.Token
	waitErr   error

	completeToken  *pkgoauth.Token
	completeErr    error
	completedInput string
	discardOnErr   bool

	pending bool

	stored    *oauth.StoredToken
	logoutErr error
	loggedOut bool

	reconnectErr error
	reconnected  bool

	browserURLs []string
	browserErr  error
}

func (m *mockSession) ServerID() string  { return m.serverID }
func (m *mockSession) ServerURL() string { return m.serverURL }
func (m *mockSession) Connected() bool   { return m.connected }

func (m *mockSession) ServerInfo() (string, string) {
	return m.serverName, m.serverVersion
}

func (m *mockSession) Reconnect(ctx context.Context) error {
	if m.reconnectErr != nil {
		return m.reconnectErr
	}
	m.reconnected = true
	m.connected = true
	return nil
}

func (m *mockSession) Tools(ctx context.Context) ([]mcp.Tool, error) {
	if m.toolsErr != nil {
		return nil, m.toolsErr
	}
	return m.tools, nil
}

func (m *mockSession) CachedTools() []mcp.Tool { return m.cached }

func (m *mockSession) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	m.calledTool = name
	m.calledArgs = args
	if m.callErr != nil {
		return nil, m.callErr
	}
	return m.callResult, nil
}

func (m *mockSession) UsesStaticBearer() bool { return m.staticBearer }

func (m *mockSession) StartLogin(ctx context.Context) (*pkgoauth.PreparedFlow, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.pending = true
	return m.flow, nil
}

func (m *mockSession) WaitForCallback(ctx context.Context, timeout time.Duration) (*pkgoauth.Token, error) {
	if m.waitErr != nil {
		return nil, m.waitErr
	}
	m.pending = false
	return m.waitToken, nil
}

func (m *mockSession) CompleteWithInput(ctx context.Context, input string) (*pkgoauth.Token, error) {
	m.completedInput = input
	if m.completeErr != nil {
		if m.discardOnErr {
			m.pending = false
		}
		return nil, m.completeErr
	}
	m.pending = false
	return m.completeToken, nil
}

func (m *mockSession) HasPendingFlow() bool { return m.pending }

func (m *mockSession) Token() *oauth.StoredToken { return m.stored }

func (m *mockSession) Logout() error {
	if m.logoutErr != nil {
		return m.logoutErr
	}
	m.loggedOut = true
	m.stored = nil
	return nil
}

func (m *mockSession) OpenBrowser(url string) error {
	m.browserURLs = append(m.browserURLs, url)
	return m.browserErr
}

// mockOutput captures formatted output lines, prefixed with the log
// level so tests can assert on both the message and how it was
// reported.
type mockOutput struct {
	lines []string
}

func (m *mockOutput) record(prefix, format string, args ...interface{}) {
	m.lines = append(m.lines, prefix+fmt.Sprintf(format, args...))
}

func (m *mockOutput) Output(format string, args ...interface{}) {
	m.record("", format, args...)
}

func (m *mockOutput) OutputLine(format string, args ...interface{}) {
	m.record("", format, args...)
}

func (m *mockOutput) Info(format string, args ...interface{}) {
	m.record("INFO: ", format, args...)
}

func (m *mockOutput) Debug(format string, args ...interface{}) {
	m.record("DEBUG: ", format, args...)
}

func (m *mockOutput) Error(format string, args ...interface{}) {
	m.record("ERROR: ", format, args...)
}

func (m *mockOutput) Success(format string, args ...interface{}) {
	m.record("SUCCESS: ", format, args...)
}

func (m *mockOutput) SetVerbose(verbose bool) {}

// joined returns all captured lines as one string for Contains checks.
func (m *mockOutput) joined() string {
	return strings.Join(m.lines, "\n")
}
