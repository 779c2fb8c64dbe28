package agent

import (
	"fmt"
	"io"
	"os"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// Logger provides formatted logging for the interactive session. Command
// results go through Output/OutputLine without timestamps; status and
// error messages are timestamped.
type Logger struct {
	verbose  bool
	useColor bool
	writer   io.Writer
}

// NewLogger creates a new logger writing to stdout.
func NewLogger(verbose, useColor bool) *Logger {
	return &Logger{
		verbose:  verbose,
		useColor: useColor,
		writer:   os.Stdout,
	}
}

// NewLoggerWithWriter creates a new logger with a custom writer.
func NewLoggerWithWriter(verbose, useColor bool, writer io.Writer) *Logger {
	return &Logger{
		verbose:  verbose,
		useColor: useColor,
		writer:   writer,
	}
}

// NewDevNullLogger creates a logger that discards everything. Used in
// tests and when the session output must stay quiet.
func NewDevNullLogger() *Logger {
	return &Logger{
		verbose:  false,
		useColor: false,
		writer:   io.Discard,
	}
}

// SetVerbose sets the verbose mode.
func (l *Logger) SetVerbose(verbose bool) {
	l.verbose = verbose
}

// SetWriter sets a custom writer for the logger.
func (l *Logger) SetWriter(w io.Writer) {
	l.writer = w
}

// Output writes user-facing output without timestamps. This is for
// command results and formatted data.
func (l *Logger) Output(format string, args ...interface{}) {
	fmt.Fprintf(l.writer, format, args...)
}

// OutputLine writes user-facing output with a newline.
func (l *Logger) OutputLine(format string, args ...interface{}) {
	fmt.Fprintf(l.writer, format+"\n", args...)
}

// timestamp returns the current timestamp string.
func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

// colorize applies color to text if colors are enabled.
func (l *Logger) colorize(text, colorCode string) string {
	if !l.useColor {
		return text
	}
	return fmt.Sprintf("%s%s%s", colorCode, text, colorReset)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "[%s] %s\n", l.timestamp(), msg)
}

// Debug logs a debug message (only in verbose mode).
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "[%s] %s\n", l.timestamp(), l.colorize(msg, colorGray))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "[%s] %s\n", l.timestamp(), l.colorize(msg, colorYellow))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "[%s] %s\n", l.timestamp(), l.colorize(msg, colorRed))
}

// Success logs a success message.
func (l *Logger) Success(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "[%s] %s\n", l.timestamp(), l.colorize(msg, colorGreen))
}
