// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the global zerolog logger.
//
// The full-screen widget owns stdout, so in TUI mode logs go to a file (or
// nowhere). Line-oriented commands log to stderr through a console writer.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel converts a level name into a zerolog.Level. Unknown names map
// to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	case "info":
		fallthrough
	default:
		return zerolog.InfoLevel
	}
}

// Setup points the global logger at w with the given level and returns it.
func Setup(level string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// SetupConsole logs human-readable lines to stderr.
func SetupConsole(level string) zerolog.Logger {
	return Setup(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// SetupFile appends JSON lines to path, creating parent directories. The
// returned closer must be called on shutdown. An empty path discards logs.
func SetupFile(level, path string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return Setup(level, io.Discard), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return Setup(level, io.Discard), io.NopCloser(nil), errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return Setup(level, io.Discard), io.NopCloser(nil), errors.Wrapf(err, "open log file %s", path)
	}
	return Setup(level, f), f, nil
}
