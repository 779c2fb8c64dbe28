package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// browserLauncher starts the prepared browser command. Replaceable in
// tests to avoid opening a real browser.
var browserLauncher = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// OpenBrowser opens the system default browser at the given URL. Only
// http and https URLs are accepted. The command is started without
// waiting: browser failures surface to the user, and the manual
// completion path covers headless environments.
func OpenBrowser(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %q", parsed.Scheme)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", rawURL)
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", rawURL)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := browserLauncher(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
