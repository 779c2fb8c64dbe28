// Package logging provides gatepass's structured logging facade on top
// of Go's standard slog package.
//
// Log entries carry a level, a subsystem identifier, a printf-formatted
// message, and an optional error. Output is slog text on the writer
// passed to InitForCLI, filtered to the configured minimum level.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Config", "Loaded configuration from %s", path)
//	logging.Debug("OAuth", "Discovered issuer %s", issuer)
//	logging.Error("MCP", err, "Failed to connect to %s", serverID)
//
// InitForCLI also installs the handler as the slog default, so library
// packages that accept a *slog.Logger and fall back to slog.Default()
// share the same output and filtering.
package logging
