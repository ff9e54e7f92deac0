// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("returns a usable logger", func(t *testing.T) {
		if New(slog.LevelInfo) == nil {
			t.Fatal("expected a non-nil logger")
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("honors the configured level", func(t *testing.T) {
		levels := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
		tests := []struct {
			name      string
			threshold slog.Level
		}{
			{"DEBUG", slog.LevelDebug},
			{"INFO", slog.LevelInfo},
			{"WARN", slog.LevelWarn},
			{"ERROR", slog.LevelError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				buf := bytes.NewBuffer(nil)
				l := NewLogger(tt.threshold, buf)
				for _, level := range levels {
					l.Log(t.Context(), level, "probe", slog.String("at", level.String()))
				}
				for _, level := range levels {
					logged := strings.Contains(buf.String(), "at="+level.String())
					if level >= tt.threshold && !logged {
						t.Errorf("expected a %s entry at threshold %s", level, tt.threshold)
					}
					if level < tt.threshold && logged {
						t.Errorf("did not expect a %s entry at threshold %s", level, tt.threshold)
					}
				}
			})
		}
	})
}

func TestErr(t *testing.T) {
	t.Run("renders the error as a text attribute", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		l := NewLogger(slog.LevelDebug, buf)
		l.Error("lookup failed", Err(errors.New("intentionally failing")))
		if !strings.Contains(buf.String(), `error="intentionally failing"`) {
			t.Errorf("expected the error attribute in the output, got: %q", buf.String())
		}
	})
}
