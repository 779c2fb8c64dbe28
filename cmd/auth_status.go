package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"gatepass/internal/config"
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored credentials for all configured servers",
	Long: `Show stored credentials for all configured servers.

For each server the table shows whether it uses a bearer token from the
config, has a stored OAuth token (and when it expires), has a login
pending manual completion, or has no credentials at all.

Examples:
  gatepass auth status
  gatepass auth status --endpoint https://mcp.example.com/mcp`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	var servers []config.ServerSpec
	if rootEndpoint != "" {
		spec, err := serverFromArgs(nil)
		if err != nil {
			return err
		}
		servers = []config.ServerSpec{*spec}
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		servers = cfg.Servers
	}

	if len(servers) == 0 {
		authPrintln("No servers configured.")
		authPrintln("Declare servers in ./gatepass.yaml or ~/.config/gatepass/config.yaml, or pass --endpoint.")
		return nil
	}

	stores, err := newAuthStores()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("SERVER"),
		text.FgHiCyan.Sprint("URL"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("EXPIRES"),
	})

	var pendingIDs []string
	for i := range servers {
		spec := &servers[i]
		status, expires := describeServerAuth(spec, stores)
		t.AppendRow(table.Row{spec.ID, spec.URL, status, expires})
		if stores.manager.HasPending(spec.ID) {
			pendingIDs = append(pendingIDs, spec.ID)
		}
	}
	t.Render()

	for _, id := range pendingIDs {
		authPrint("\nLogin pending for %s. Finish it with 'gatepass auth code %s <redirect-url-or-code>'.\n", id, id)
	}
	return nil
}

// describeServerAuth returns the status and expiry cells for one server.
func describeServerAuth(spec *config.ServerSpec, stores *authStores) (string, string) {
	if spec.Auth.ResolveBearerToken() != "" {
		return text.FgGreen.Sprint("bearer (config)"), "-"
	}

	token := stores.tokens.Get(spec.URL)
	if token == nil {
		if stores.manager.HasPending(spec.ID) {
			return text.FgYellow.Sprint("login pending"), "-"
		}
		return text.FgHiBlack.Sprint("not authenticated"), "-"
	}

	if token.IsExpired() {
		status := text.FgYellow.Sprint("expired")
		if token.RefreshToken != "" {
			status = text.FgYellow.Sprint("expired (refreshable)")
		}
		return status, formatExpiry(token.ExpiresAt)
	}

	if token.ExpiresAt.IsZero() {
		return text.FgGreen.Sprint("authenticated"), "-"
	}
	return text.FgGreen.Sprint("authenticated"), formatExpiry(token.ExpiresAt)
}
