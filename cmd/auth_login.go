package cmd

import (
	"errors"
	"fmt"
	"time"

	"gatepass/internal/oauth"
	pkgoauth "gatepass/pkg/oauth"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	authLoginTimeout   time.Duration
	authLoginNoBrowser bool
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login <server>",
	Short: "Log in to an MCP server via OAuth",
	Long: `Log in to an MCP server via the OAuth authorization code flow.

The command discovers the server's authorization requirements, opens
the authorization URL in your browser, and waits for the redirect on a
loopback listener. The obtained token is stored and picked up by every
other command.

If the callback never arrives (remote shell, broken redirect), the
flow stays pending: paste the redirect URL or the code into
'gatepass auth code <server>' to finish it.

Examples:
  gatepass auth login files
  gatepass auth login --endpoint https://mcp.example.com/mcp
  gatepass auth login files --timeout 10m --no-browser`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

func init() {
	authCmd.AddCommand(authLoginCmd)

	authLoginCmd.Flags().DurationVar(&authLoginTimeout, "timeout", 5*time.Minute, "How long to wait for the authorization callback")
	authLoginCmd.Flags().BoolVar(&authLoginNoBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	spec, err := serverFromArgs(args)
	if err != nil {
		return err
	}

	if spec.Auth.ResolveBearerToken() != "" {
		authPrintln("Server", spec.ID, "uses a pre-issued bearer token; no login needed.")
		return nil
	}

	stores, err := newAuthStores()
	if err != nil {
		return err
	}

	flow, err := stores.manager.StartLogin(ctx, spec.ID, spec.URL, spec.FlowConfig())
	if err != nil {
		return fmt.Errorf("failed to prepare login for %s: %w", spec.ID, err)
	}

	authPrint("Logging in to %s\n\n", spec.DisplayName())
	authPrint("  %s\n\n", flow.AuthorizationURL)

	if authLoginNoBrowser {
		authPrintln("Open the URL above in your browser to continue.")
	} else if err := oauth.OpenBrowser(flow.AuthorizationURL); err != nil {
		authPrint("Could not open a browser (%v).\n", err)
		authPrintln("Open the URL above manually to continue.")
	}

	var s *spinner.Spinner
	if !rootQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Waiting for the authorization callback on %s", flow.Pending.RedirectURI)
		s.Start()
	}

	token, err := stores.manager.WaitForCallback(ctx, spec.ID, spec.URL, authLoginTimeout)
	if err != nil {
		if s != nil {
			s.FinalMSG = text.FgRed.Sprint("Callback not received") + "\n"
			s.Stop()
		}

		var timeoutErr *oauth.CallbackTimeoutError
		if errors.As(err, &timeoutErr) {
			authPrintln(text.FgYellow.Sprint("Timed out waiting for the authorization callback."))
			authPrintln("The login is still pending. Finish it with the redirect URL from your browser:")
			authPrint("\n  gatepass auth code %s <redirect-url-or-code>\n\n", spec.ID)
			return err
		}
		return fmt.Errorf("login failed for %s: %w", spec.ID, err)
	}
	if s != nil {
		s.Stop()
	}

	printLoginResult(spec.DisplayName(), token)
	return nil
}

// printLoginResult summarizes a fresh token for the user.
func printLoginResult(name string, token *pkgoauth.Token) {
	authPrintln(text.FgGreen.Sprint("Logged in to " + name))
	if !token.ExpiresAt.IsZero() {
		authPrintln("Token expires", formatExpiry(token.ExpiresAt))
	}
	if token.Scope != "" {
		authPrintln("Granted scope:", token.Scope)
	}
	if token.RefreshToken != "" {
		authPrintln("Refresh token stored.")
	}
}
