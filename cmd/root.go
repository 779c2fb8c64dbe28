package cmd

import (
	"errors"
	"os"

	"gatepass/internal/mcpclient"
	"gatepass/internal/oauth"
	"gatepass/pkg/logging"
	pkgoauth "gatepass/pkg/oauth"

	"github.com/spf13/cobra"
)

// Exit codes for gatepass commands
const (
	// ExitCodeSuccess indicates successful execution
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates the server rejected the request and
	// a login is needed
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates a login flow was attempted and failed
	ExitCodeAuthFailed = 3
)

var (
	rootConfigPath string
	rootEndpoint   string
	rootQuiet      bool
	rootDebug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gatepass",
	Short: "OAuth 2.0 client for MCP servers",
	Long: `gatepass connects to MCP servers that sit behind OAuth 2.0.

It probes a server for its authentication requirements, discovers the
authorization server through protected resource metadata, registers a
client when none is configured, and runs the authorization code flow
with PKCE through your browser. Tokens are stored per server and reused
until they expire.

Servers are declared in a config file (./gatepass.yaml or
~/.config/gatepass/config.yaml) and addressed by id, or passed ad hoc
with --endpoint.

Examples:
  # Log in to a configured server
  gatepass auth login files

  # Finish a login manually after the browser redirect
  gatepass auth code files "http://127.0.0.1:51342/callback?code=...&state=..."

  # Inspect stored credentials
  gatepass auth status

  # List and call tools
  gatepass tools files
  gatepass tools files call search '{"query": "report"}'

  # Interactive session
  gatepass repl files`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelWarn
		if rootDebug {
			level = logging.LevelDebug
		}
		logging.InitForCLI(level, os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", "", "Configuration file (default: ./gatepass.yaml, then ~/.config/gatepass/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootEndpoint, "endpoint", "", "MCP endpoint URL, bypassing the config file")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging on stderr")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code for an error
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var authErr *mcpclient.AuthRequiredError
	if errors.As(err, &authErr) {
		return ExitCodeAuthRequired
	}
	if isAuthFlowError(err) {
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}

// isAuthFlowError reports whether err came out of the authorization flow
// itself, as opposed to transport or usage errors.
func isAuthFlowError(err error) bool {
	var (
		discovery    *pkgoauth.DiscoveryExhaustedError
		registration *pkgoauth.RegistrationFailedError
		noClient     *pkgoauth.NoClientAvailableError
		exchange     *pkgoauth.TokenExchangeFailedError
		parse        *pkgoauth.InputParseError
		timeout      *oauth.CallbackTimeoutError
		failed       *oauth.CallbackFailedError
		mismatch     *oauth.StateMismatchError
		missing      *oauth.MissingCodeError
		noPending    *oauth.NoPendingFlowError
	)
	switch {
	case errors.As(err, &discovery),
		errors.As(err, &registration),
		errors.As(err, &noClient),
		errors.As(err, &exchange),
		errors.As(err, &parse),
		errors.As(err, &timeout),
		errors.As(err, &failed),
		errors.As(err, &mismatch),
		errors.As(err, &missing),
		errors.As(err, &noPending):
		return true
	}
	return false
}

// SetVersion sets the version for the root command
func SetVersion(version string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`{{printf "gatepass version %s\n" .Version}}`)
}

// GetVersion returns the current version
func GetVersion() string {
	return rootCmd.Version
}
