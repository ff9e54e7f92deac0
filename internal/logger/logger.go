// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package logger provides a thin wrapper around log/slog for the mappick packages.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps a slog.Logger so that packages only depend on this type.
type Logger struct {
	*slog.Logger
}

// New returns a Logger writing text-formatted entries to STDERR at the given level.
func New(level slog.Level) *Logger {
	return NewLogger(level, os.Stderr)
}

// NewLogger returns a Logger writing text-formatted entries to the given writer at the
// given level.
func NewLogger(level slog.Level, output io.Writer) *Logger {
	return &Logger{slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))}
}

// Err wraps an error into a slog.Attr for structured error logging.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
