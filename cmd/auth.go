package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage OAuth credentials for MCP servers",
	Long: `Manage OAuth credentials for MCP servers.

Login runs the authorization code flow with PKCE: the authorization URL
opens in your browser and a loopback listener waits for the redirect.
If the redirect cannot reach the listener, paste the redirect URL (or
just the code) into 'auth code' to finish the flow.

Tokens are stored under ~/.config/gatepass/tokens and reused by every
command until they expire.

Examples:
  gatepass auth login files
  gatepass auth code files "http://127.0.0.1:51342/callback?code=...&state=..."
  gatepass auth status
  gatepass auth logout files`,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

// authPrint prints progress output to stdout unless --quiet is set.
func authPrint(format string, args ...interface{}) {
	if !rootQuiet {
		fmt.Printf(format, args...)
	}
}

// authPrintln prints progress output to stdout unless --quiet is set.
func authPrintln(args ...interface{}) {
	if !rootQuiet {
		fmt.Println(args...)
	}
}
