package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gatepass/internal/agent"

	"github.com/spf13/cobra"
)

var (
	replVerbose bool
	replNoColor bool
)

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl <server>",
	Short: "Interactive session against an MCP server",
	Long: `Start an interactive session against an MCP server.

The REPL connects on demand, completes tool names and parameters, and
runs the whole authorization lifecycle in place: 'auth' starts a login,
'code' finishes one manually, 'status' and 'logout' inspect and drop
credentials. Tokens obtained here are the same ones the one-shot
commands use.

Examples:
  gatepass repl files
  gatepass repl --endpoint https://mcp.example.com/mcp`,
	Args: cobra.MaximumNArgs(1),
	RunE: runREPL,
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().BoolVar(&replVerbose, "verbose", false, "Show debug output")
	replCmd.Flags().BoolVar(&replNoColor, "no-color", false, "Disable colored output")
}

func runREPL(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger := agent.NewLogger(replVerbose, !replNoColor)

	// Handle interrupts gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	spec, err := serverFromArgs(args)
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
		Logger:        logger,
		ClientVersion: GetVersion(),
	})
	defer session.Close()

	repl := agent.NewREPL(session, logger)
	if err := repl.Run(ctx); err != nil {
		return fmt.Errorf("REPL error: %w", err)
	}
	return nil
}
