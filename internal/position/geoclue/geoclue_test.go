// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

package geoclue

import (
	"log/slog"
	"testing"

	"github.com/tversen/mappick/internal/logger"
	"github.com/tversen/mappick/internal/position"
)

func TestNew(t *testing.T) {
	t.Run("new authority succeeds", func(t *testing.T) {
		authority := New("mappick", logger.New(slog.LevelError))
		if authority == nil {
			t.Fatal("expected authority to be non-nil")
		}
		if authority.desktopID != "mappick" {
			t.Errorf("expected desktop ID to be mappick, got %q", authority.desktopID)
		}
	})
}

func TestAuthority_Check(t *testing.T) {
	t.Run("a remembered probe outcome is returned without touching the bus", func(t *testing.T) {
		tests := []struct {
			name  string
			state position.PermissionState
		}{
			{"granted while in use", position.PermissionGrantedWhileInUse},
			{"denied", position.PermissionDenied},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				authority := New("mappick", logger.New(slog.LevelError))
				authority.remember(tc.state)

				state, err := authority.Check(t.Context())
				if err != nil {
					t.Fatal(err)
				}
				if state != tc.state {
					t.Errorf("expected remembered state %s, got %s", tc.state, state)
				}
			})
		}
	})
}
