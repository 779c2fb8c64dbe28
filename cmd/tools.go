package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gatepass/internal/agent"
	"gatepass/internal/config"
	"gatepass/internal/mcpclient"
	pkgstrings "gatepass/pkg/strings"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

// toolsCmd represents the tools command
var toolsCmd = &cobra.Command{
	Use:   "tools <server> [call <tool> [json-args]]",
	Short: "List or call tools on an MCP server",
	Long: `List or call tools on an MCP server.

Without further arguments the server's tools are listed. With
'call <tool>' the named tool is executed; arguments are a single JSON
object. Stored credentials are sent automatically; if the server
rejects them, the command exits with the auth-required code and points
at 'auth login'.

Examples:
  gatepass tools files
  gatepass tools files call search '{"query": "quarterly report"}'
  gatepass tools --endpoint https://mcp.example.com/mcp call list_files`,
	Args: cobra.ArbitraryArgs,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// With --endpoint the server id is optional, so the argument list
	// may start directly with the call action.
	var serverArgs, rest []string
	if rootEndpoint != "" && (len(args) == 0 || args[0] == "call") {
		rest = args
	} else if len(args) > 0 {
		serverArgs = args[:1]
		rest = args[1:]
	}

	spec, err := serverFromArgs(serverArgs)
	if err != nil {
		return err
	}

	stores, err := newAuthStores()
	if err != nil {
		return err
	}

	session := agent.NewSession(agent.SessionConfig{
		Spec:          *spec,
		Manager:       stores.manager,
		TokenStore:    stores.tokens,
		Logger:        agent.NewDevNullLogger(),
		ClientVersion: GetVersion(),
	})
	defer session.Close()

	var s *spinner.Spinner
	if !rootQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Connecting to %s", spec.DisplayName())
		s.Start()
	}
	tools, err := session.Tools(ctx)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return loginHint(err, spec)
	}

	if len(rest) == 0 {
		renderToolTable(cmd.OutOrStdout(), tools)
		return nil
	}

	if rest[0] != "call" || len(rest) < 2 {
		return fmt.Errorf("usage: gatepass tools <server> [call <tool> [json-args]]")
	}

	toolName := rest[1]
	toolArgs := map[string]interface{}{}
	if raw := strings.TrimSpace(strings.Join(rest[2:], " ")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &toolArgs); err != nil {
			return fmt.Errorf("tool arguments must be a JSON object: %w", err)
		}
	}

	result, err := session.CallTool(ctx, toolName, toolArgs)
	if err != nil {
		return loginHint(err, spec)
	}
	return renderToolResult(cmd.OutOrStdout(), toolName, result)
}

// loginHint decorates auth-required failures with the login command to
// run. Other errors pass through untouched.
func loginHint(err error, spec *config.ServerSpec) error {
	var authErr *mcpclient.AuthRequiredError
	if errors.As(err, &authErr) {
		authPrintln(text.FgYellow.Sprint("Authentication required for " + spec.ID))
		if rootEndpoint != "" {
			authPrint("Run 'gatepass auth login --endpoint %s' first.\n", rootEndpoint)
		} else {
			authPrint("Run 'gatepass auth login %s' first.\n", spec.ID)
		}
	}
	return err
}

func renderToolTable(out io.Writer, tools []mcp.Tool) {
	if len(tools) == 0 {
		fmt.Fprintln(out, "No tools available.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("TOOL"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, tool := range tools {
		t.AppendRow(table.Row{tool.Name, pkgstrings.TruncateDescription(tool.Description, pkgstrings.DefaultDescriptionMaxLen)})
	}
	t.Render()

	fmt.Fprintf(out, "%d tools\n", len(tools))
}

// renderToolResult prints the content blocks of a tool result. An
// IsError result is printed and turned into a non-nil error so the
// process exits non-zero.
func renderToolResult(out io.Writer, toolName string, result *mcp.CallToolResult) error {
	if result.IsError {
		fmt.Fprintln(out, text.FgRed.Sprint("Tool returned an error:"))
		for _, content := range result.Content {
			if textContent, ok := mcp.AsTextContent(content); ok {
				fmt.Fprintf(out, "  %s\n", textContent.Text)
			}
		}
		return fmt.Errorf("tool %s failed", toolName)
	}

	for _, content := range result.Content {
		switch v := content.(type) {
		case mcp.TextContent:
			fmt.Fprintln(out, prettyJSON(v.Text))
		case mcp.ImageContent:
			fmt.Fprintf(out, "[Image: MIME type %s, %d bytes]\n", v.MIMEType, len(v.Data))
		case mcp.AudioContent:
			fmt.Fprintf(out, "[Audio: MIME type %s, %d bytes]\n", v.MIMEType, len(v.Data))
		default:
			fmt.Fprintf(out, "%+v\n", content)
		}
	}
	return nil
}

// prettyJSON re-indents s when it is valid JSON, otherwise returns it
// unchanged.
func prettyJSON(s string) string {
	var obj interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return s
	}
	b, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return s
	}
	return string(b)
}
