package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// serversCmd represents the servers command
var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the configured MCP servers",
	Long: `List the configured MCP servers.

The AUTH column shows how each server authenticates: "bearer" for a
pre-issued token from the config, "oauth" for the discovered
authorization code flow, with "(client_id set)" when the config pins a
client id.

Examples:
  gatepass servers`,
	Args: cobra.NoArgs,
	RunE: runServers,
}

func init() {
	rootCmd.AddCommand(serversCmd)
}

func runServers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if len(cfg.Servers) == 0 {
		authPrintln("No servers configured.")
		authPrintln("Declare servers in ./gatepass.yaml or ~/.config/gatepass/config.yaml.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("ID"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("URL"),
		text.FgHiCyan.Sprint("AUTH"),
	})

	for i := range cfg.Servers {
		spec := &cfg.Servers[i]
		auth := "oauth"
		switch {
		case spec.Auth.ResolveBearerToken() != "":
			auth = "bearer"
		case spec.Auth.ResolveClientID() != "":
			auth = "oauth (client_id set)"
		}
		t.AppendRow(table.Row{spec.ID, spec.DisplayName(), spec.URL, auth})
	}
	t.Render()

	return nil
}
