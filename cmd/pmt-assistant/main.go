package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/dwizi/pmt-assistant/internal/cli"
	"github.com/dwizi/pmt-assistant/internal/config"
)

func main() {
	level := parseLevel(config.FromEnv().LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
