package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	authLogoutAll bool
	authLogoutYes bool
)

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout [server]",
	Short: "Remove stored credentials for a server",
	Long: `Remove stored credentials for a server.

The stored token is deleted and any pending login is cancelled. The
cached client registration is kept so the next login can skip dynamic
registration.

Examples:
  gatepass auth logout files
  gatepass auth logout --all --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogout,
}

func init() {
	authCmd.AddCommand(authLogoutCmd)

	authLogoutCmd.Flags().BoolVar(&authLogoutAll, "all", false, "Remove stored tokens for every server")
	authLogoutCmd.Flags().BoolVar(&authLogoutYes, "yes", false, "Skip the confirmation prompt")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	stores, err := newAuthStores()
	if err != nil {
		return err
	}

	if authLogoutAll {
		if !authLogoutYes {
			fmt.Fprint(cmd.OutOrStdout(), "Remove stored tokens for all servers? [y/N]: ")
			reader := bufio.NewReader(cmd.InOrStdin())
			answer, _ := reader.ReadString('\n')
			answer = strings.ToLower(strings.TrimSpace(answer))
			if answer != "y" && answer != "yes" {
				authPrintln("Aborted.")
				return nil
			}
		}
		if err := stores.tokens.Clear(); err != nil {
			return fmt.Errorf("failed to clear tokens: %w", err)
		}
		authPrintln(text.FgGreen.Sprint("Removed all stored tokens."))
		return nil
	}

	spec, err := serverFromArgs(args)
	if err != nil {
		return err
	}

	if spec.Auth.ResolveBearerToken() != "" {
		authPrintln("Server", spec.ID, "uses a bearer token from the config; nothing stored to remove.")
		return nil
	}

	hadPending := stores.manager.HasPending(spec.ID)
	stores.manager.CancelPending(spec.ID)

	if stores.tokens.Get(spec.URL) == nil {
		if hadPending {
			authPrint("Cancelled the pending login for %s.\n", spec.ID)
		} else {
			authPrint("No stored token for %s.\n", spec.ID)
		}
		return nil
	}

	if err := stores.manager.Logout(spec.URL); err != nil {
		return fmt.Errorf("failed to log out of %s: %w", spec.ID, err)
	}

	authPrintln(text.FgGreen.Sprint("Logged out of " + spec.DisplayName()))
	return nil
}
