package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	logLevelEnvVar = "LOG_LEVEL"
	logFileEnvVar  = "LOG_FILE"
)

// initLogger configures the default slog logger.
// Priority: CLI flags > env vars > defaults.
func initLogger(cliLevel, cliFile string) (func(), error) {
	level := cliLevel
	if level == "" {
		level = os.Getenv(logLevelEnvVar)
	}
	if level == "" {
		level = "info"
	}

	file := cliFile
	if file == "" {
		file = os.Getenv(logFileEnvVar)
	}

	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q (debug, info, warn, error)", level)
	}

	output := os.Stderr
	cleanup := func() {}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
		cleanup = func() { _ = f.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: slogLevel})))
	return cleanup, nil
}
