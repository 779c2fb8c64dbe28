package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if got := test.level.String(); got != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, want %s", test.level, got, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		if got := test.level.SlogLevel(); got != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, want %v", test.level, got, test.expected)
		}
	}
}

func TestInitForCLI_Output(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Info("Test", "hello %s", "world")

	out := buf.String()
	if !strings.Contains(out, "hello world") {
		t.Errorf("output missing formatted message: %s", out)
	}
	if !strings.Contains(out, "subsystem=Test") {
		t.Errorf("output missing subsystem attribute: %s", out)
	}
	if !strings.Contains(out, "level=INFO") {
		t.Errorf("output missing level: %s", out)
	}
}

func TestInitForCLI_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Debug("Test", "debug line")
	Info("Test", "info line")
	Warn("Test", "warn line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("filtered levels leaked through: %s", out)
	}
	if !strings.Contains(out, "warn line") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestError_IncludesErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	Error("Test", errors.New("boom"), "operation failed")

	out := buf.String()
	if !strings.Contains(out, "operation failed") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Errorf("output missing error attribute: %s", out)
	}
}

func TestInitForCLI_SetsSlogDefault(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	slog.Debug("direct slog call")

	if !strings.Contains(buf.String(), "direct slog call") {
		t.Errorf("slog default not wired to the same output: %s", buf.String())
	}
}
