package main

import (
	"io"
	"log/slog"
	"strings"
)

// initLogging installs the default slog logger. flagLevel wins over LOG_LEVEL.
func initLogging(w io.Writer, envLevel, flagLevel string) slog.Level {
	levelStr := envLevel
	if flagLevel != "" {
		levelStr = flagLevel
	}
	level := parseLevel(levelStr)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return level
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default: // "info" or anything unrecognised
		return slog.LevelInfo
	}
}
