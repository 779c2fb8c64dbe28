package cmd

import (
	"errors"
	"fmt"

	"gatepass/internal/oauth"

	"github.com/spf13/cobra"
)

// authCodeCmd represents the auth code command
var authCodeCmd = &cobra.Command{
	Use:   "code <server> <redirect-url-or-code>",
	Short: "Finish a pending login with a pasted redirect URL or code",
	Long: `Finish a pending login manually.

When the browser redirect cannot reach the loopback listener, copy the
full redirect URL from the browser's address bar (or just the code
parameter) and pass it here. The pending flow started by 'auth login'
is looked up by server id, the state is validated, and the code is
exchanged for a token.

Examples:
  gatepass auth code files "http://127.0.0.1:51342/callback?code=SplxlO...&state=af0ifj"
  gatepass auth code files SplxlOBeZQQYbYS6WxSbIA`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAuthCode,
}

func init() {
	authCmd.AddCommand(authCodeCmd)
}

func runAuthCode(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	input := args[len(args)-1]
	serverArgs := args[:len(args)-1]
	if rootEndpoint == "" && len(serverArgs) == 0 {
		return fmt.Errorf("usage: gatepass auth code <server> <redirect-url-or-code>")
	}

	spec, err := serverFromArgs(serverArgs)
	if err != nil {
		return err
	}

	stores, err := newAuthStores()
	if err != nil {
		return err
	}

	token, err := stores.manager.CompleteWithInput(ctx, spec.ID, spec.URL, input)
	if err != nil {
		var noPending *oauth.NoPendingFlowError
		if errors.As(err, &noPending) {
			authPrint("No pending login for %s.\n", spec.ID)
			authPrint("Run 'gatepass auth login %s' to start one.\n", spec.ID)
			return err
		}
		return fmt.Errorf("failed to complete login for %s: %w", spec.ID, err)
	}

	printLoginResult(spec.DisplayName(), token)
	return nil
}
