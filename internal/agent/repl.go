package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"gatepass/internal/agent/commands"
	"gatepass/internal/mcpclient"
	"gatepass/internal/oauth"
)

// promptPrefixUnicode uses a mathematical bold "g" for branding in the
// session prompt. Used when the terminal supports unicode.
const promptPrefixUnicode = "𝗴"

// promptPrefixASCII is the fallback prefix for terminals without
// unicode support.
const promptPrefixASCII = "g"

// promptChevronUnicode is the guillemet separator used in the prompt.
const promptChevronUnicode = "»"

// promptChevronASCII is the fallback chevron for terminals without
// unicode support.
const promptChevronASCII = ">"

// StateAuthRequired is the indicator shown in the prompt when the bound
// server requires authentication. Displayed in uppercase because it
// requires user action (running 'auth').
const StateAuthRequired = "[AUTH REQUIRED]"

// maxServerNameLength is the maximum length for the server id in the
// prompt. Longer ids are truncated with an ellipsis that preserves the
// distinguishing suffix.
const maxServerNameLength = 28

// commandExecutionTimeout is the timeout for individual command
// execution. Five minutes allows long-running tool calls while still
// providing a safety net against hung operations.
const commandExecutionTimeout = 5 * time.Minute

// initialConnectTimeout bounds the connection attempt made before the
// first prompt is shown.
const initialConnectTimeout = 30 * time.Second

// REPL is the interactive session bound to a single server. It wires a
// readline loop with history and tab completion to the command
// registry, shows the authorization state in the prompt, and watches
// the token directory so credentials written by a parallel `auth login`
// are picked up without restarting.
type REPL struct {
	session  *Session
	logger   *Logger
	rl       *readline.Instance
	registry *commands.Registry
	watcher  *oauth.CredentialWatcher

	mu            sync.RWMutex
	authRequired  bool
	useUnicode    bool
	lastToolCount int
}

// NewREPL creates a session REPL and registers the command set.
func NewREPL(session *Session, logger *Logger) *REPL {
	repl := &REPL{
		session:    session,
		logger:     logger,
		registry:   commands.NewRegistry(),
		useUnicode: detectUnicodeSupport(),
	}

	repl.registerCommands()

	return repl
}

// registerCommands registers the command set with the registry.
func (r *REPL) registerCommands() {
	r.registry.Register("tools", commands.NewToolsCommand(r.session, r.logger))
	r.registry.Register("call", commands.NewCallCommand(r.session, r.logger))
	r.registry.Register("auth", commands.NewLoginCommand(r.session, r.logger))
	r.registry.Register("code", commands.NewCodeCommand(r.session, r.logger))
	r.registry.Register("status", commands.NewStatusCommand(r.session, r.logger))
	r.registry.Register("logout", commands.NewLogoutCommand(r.session, r.logger))
	r.registry.Register("help", commands.NewHelpCommand(r.session, r.logger, r.registry))
	r.registry.Register("exit", commands.NewExitCommand(r.session, r.logger))
}

// detectUnicodeSupport checks if the terminal likely supports unicode
// characters. Returns false for dumb terminals or when uncertain.
func detectUnicodeSupport() bool {
	term := os.Getenv("TERM")
	lang := os.Getenv("LANG")
	lcAll := os.Getenv("LC_ALL")

	if term == "" || term == "dumb" {
		return false
	}

	for _, v := range []string{lang, lcAll} {
		if strings.Contains(strings.ToLower(v), "utf-8") || strings.Contains(strings.ToLower(v), "utf8") {
			return true
		}
	}

	unicodeTerminals := []string{"xterm", "screen", "tmux", "alacritty", "kitty", "iterm"}
	termLower := strings.ToLower(term)
	for _, ut := range unicodeTerminals {
		if strings.Contains(termLower, ut) {
			return true
		}
	}

	return true
}

// buildPrompt creates the prompt with the bound server id. Format
// examples:
//   - "𝗴 my-server » "
//   - "𝗴 my-server [AUTH REQUIRED] » "
//
// The AUTH REQUIRED indicator is shown only while authentication is
// needed, to keep the prompt clean otherwise. Falls back to ASCII
// characters if the terminal does not support unicode.
func (r *REPL) buildPrompt() string {
	r.mu.RLock()
	authReq := r.authRequired
	useUnicode := r.useUnicode
	r.mu.RUnlock()

	prefix := promptPrefixASCII
	chevron := promptChevronASCII
	if useUnicode {
		prefix = promptPrefixUnicode
		chevron = promptChevronUnicode
	}

	parts := []string{prefix, truncateServerName(r.session.ServerID())}
	if authReq {
		parts = append(parts, StateAuthRequired)
	}
	parts = append(parts, chevron)

	return strings.Join(parts, " ") + " "
}

// truncateServerName truncates long server ids to fit in the prompt,
// preserving both the start and the end of the id.
func truncateServerName(name string) string {
	if len(name) <= maxServerNameLength {
		return name
	}

	ellipsis := "..."
	available := maxServerNameLength - len(ellipsis)
	startLen := (available * 3) / 5
	endLen := available - startLen

	return name[:startLen] + ellipsis + name[len(name)-endLen:]
}

// updatePrompt refreshes the readline prompt.
func (r *REPL) updatePrompt() {
	if r.rl != nil {
		r.rl.SetPrompt(r.buildPrompt())
	}
}

// refreshAuthState re-evaluates whether the server demands
// authentication and updates the prompt. Prints an actionable hint the
// moment authentication becomes required.
func (r *REPL) refreshAuthState() {
	authRequired := r.session.AuthRequired()

	r.mu.Lock()
	changed := r.authRequired != authRequired
	r.authRequired = authRequired
	r.mu.Unlock()

	if !changed {
		return
	}

	r.updatePrompt()
	if authRequired {
		r.logger.Info("Authentication required for %s", r.session.ServerID())
		r.logger.Info("Run 'auth' to log in")
	}
}

// handleCredentialChange reacts to token files changed by another
// process: the store cache is dropped so reads see the new files, and
// the prompt state heals if a usable token appeared.
func (r *REPL) handleCredentialChange() {
	r.session.DropTokenCache()

	wasRequired := func() bool {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.authRequired
	}()

	r.refreshAuthState()

	if wasRequired && !r.session.AuthRequired() {
		r.logger.Info("Stored credentials changed; reconnecting on the next command")
	}
}

// refreshCompleter rebuilds the tab completer when the cached tool list
// changed, so freshly fetched tool names complete immediately.
func (r *REPL) refreshCompleter() {
	count := len(r.session.CachedTools())

	r.mu.Lock()
	changed := count != r.lastToolCount
	r.lastToolCount = count
	r.mu.Unlock()

	if changed && r.rl != nil {
		r.rl.Config.AutoComplete = r.createCompleter()
	}
}

// executeCommand parses and executes a command line using the registry:
// field splitting, "?" alias handling, registry lookup, and execution
// under a timeout context detached from the session lifecycle.
func (r *REPL) executeCommand(input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	commandName := strings.ToLower(parts[0])
	args := parts[1:]

	if commandName == "?" {
		commandName = "help"
	}

	command, exists := r.registry.Get(commandName)
	if !exists {
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", parts[0])
	}

	commandCtx, commandCancel := context.WithTimeout(context.Background(), commandExecutionTimeout)
	defer commandCancel()

	return command.Execute(commandCtx, args)
}

// connectInitial attempts the first connection before the loop starts.
// Failures are reported but never fatal: the user can still run 'auth',
// 'status', or 'help' against an unreachable or protected server.
func (r *REPL) connectInitial(ctx context.Context) {
	connectCtx, cancel := context.WithTimeout(ctx, initialConnectTimeout)
	defer cancel()

	err := r.session.Connect(connectCtx)

	var authErr *mcpclient.AuthRequiredError
	switch {
	case err == nil:
		name, version := r.session.ServerInfo()
		r.logger.Success("Connected to %s (%s %s)", r.session.ServerID(), name, version)
	case errors.As(err, &authErr):
		if r.session.UsesStaticBearer() {
			r.logger.Error("The configured bearer token was rejected by %s", r.session.ServerID())
		}
		// Otherwise refreshAuthState prints the login hint.
	default:
		r.logger.Error("Could not connect: %v", err)
	}
}

// Run starts the interactive loop and blocks until the user exits, the
// input reaches EOF, or the context is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	completer := r.createCompleter()
	historyFile := filepath.Join(os.TempDir(), ".gatepass_history")

	config := &readline.Config{
		Prompt:          r.buildPrompt(),
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	if dir := r.session.WatchDir(); dir != "" {
		r.watcher = oauth.NewCredentialWatcher(oauth.CredentialWatcherConfig{
			TokenDir: dir,
			OnChange: r.handleCredentialChange,
		})
		if err := r.watcher.Start(); err != nil {
			r.logger.Debug("Credential watcher not started: %v", err)
		} else {
			defer r.watcher.Stop()
		}
	}

	r.connectInitial(ctx)
	r.refreshAuthState()
	r.refreshCompleter()

	r.logger.Info("Interactive session with %s. Type 'help' for available commands. Use TAB for completion.", r.session.ServerID())
	fmt.Println()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Session shutting down...")
			return nil
		default:
		}

		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			r.logger.Info("Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if err := r.executeCommand(input); err != nil {
			if err.Error() == "exit" {
				r.logger.Info("Goodbye!")
				return nil
			}
			r.logger.Error("Error: %v", err)
		}

		r.refreshAuthState()
		r.refreshCompleter()

		fmt.Println()
	}
}
