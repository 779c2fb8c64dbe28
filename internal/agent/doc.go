// Package agent provides the interactive session for working with a
// single MCP server: a readline REPL with history and tab completion,
// commands for listing and calling tools, and the full authorization
// lifecycle (login, manual code completion, status, logout) driven by
// the same flow manager the CLI uses.
//
// A session is bound to one configured server:
//
//	session := agent.NewSession(agent.SessionConfig{
//	    Spec:       spec,
//	    Manager:    manager,
//	    TokenStore: tokens,
//	    Logger:     logger,
//	})
//	repl := agent.NewREPL(session, logger)
//	if err := repl.Run(ctx); err != nil {
//	    return err
//	}
//
// The REPL reflects the server's authorization demand in its prompt and
// watches the token directory, so a login finished in another terminal
// is picked up without restarting the session.
package agent
