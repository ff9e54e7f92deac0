// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

package position

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/logger"
)

type stubProvider struct {
	name  string
	fix   Fix
	err   error
	delay time.Duration
	panic bool
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Locate(ctx context.Context) (Fix, error) {
	if p.panic {
		panic("provider intentionally panicking")
	}
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return Fix{}, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	return p.fix, p.err
}

func testLogger() *logger.Logger {
	return logger.New(slog.LevelError)
}

func TestLocator_Locate(t *testing.T) {
	t.Run("most accurate fix wins", func(t *testing.T) {
		coarse := &stubProvider{name: "geoip", fix: Fix{
			Coordinate: geo.Coordinate{Lat: 48, Lon: 11}, Accuracy: 25000, Source: "geoip", At: time.Now(),
		}}
		fine := &stubProvider{name: "gpsd", fix: Fix{
			Coordinate: geo.Coordinate{Lat: 48.1374, Lon: 11.5755}, Accuracy: 10, Source: "gpsd", At: time.Now(),
		}}
		locator := NewLocator(testLogger(), coarse, fine)

		fix, err := locator.Locate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if fix.Source != "gpsd" {
			t.Errorf("expected gpsd fix to win, got %q", fix.Source)
		}
	})
	t.Run("failing providers are skipped", func(t *testing.T) {
		broken := &stubProvider{name: "gpsd", err: errors.New("gpsd intentionally unavailable")}
		working := &stubProvider{name: "geoip", fix: Fix{
			Coordinate: geo.Coordinate{Lat: 48, Lon: 11}, Accuracy: 25000, Source: "geoip", At: time.Now(),
		}}
		locator := NewLocator(testLogger(), broken, working)

		fix, err := locator.Locate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if fix.Source != "geoip" {
			t.Errorf("expected geoip fix, got %q", fix.Source)
		}
	})
	t.Run("panicking providers are contained", func(t *testing.T) {
		locator := NewLocator(testLogger(),
			&stubProvider{name: "bad", panic: true},
			&stubProvider{name: "geoip", fix: Fix{
				Coordinate: geo.Coordinate{Lat: 48, Lon: 11}, Accuracy: 25000, Source: "geoip", At: time.Now(),
			}})

		fix, err := locator.Locate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if fix.Source != "geoip" {
			t.Errorf("expected geoip fix, got %q", fix.Source)
		}
	})
	t.Run("unusable fixes are rejected", func(t *testing.T) {
		tests := []struct {
			name string
			fix  Fix
		}{
			{"zero accuracy", Fix{Coordinate: geo.Coordinate{Lat: 1, Lon: 1}, Source: "x"}},
			{"invalid coordinate", Fix{Coordinate: geo.Coordinate{Lat: 91, Lon: 0}, Accuracy: 10, Source: "x"}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				locator := NewLocator(testLogger(), &stubProvider{name: "x", fix: tc.fix})
				if _, err := locator.Locate(t.Context()); !errors.Is(err, ErrNoFix) {
					t.Fatalf("expected ErrNoFix, got: %v", err)
				}
			})
		}
	})
	t.Run("no providers yields ErrNoFix", func(t *testing.T) {
		locator := NewLocator(testLogger())
		if _, err := locator.Locate(t.Context()); !errors.Is(err, ErrNoFix) {
			t.Fatalf("expected ErrNoFix, got: %v", err)
		}
	})
}

func TestFix_BetterThan(t *testing.T) {
	tests := []struct {
		name   string
		fix    Fix
		prev   Fix
		better bool
	}{
		{"anything beats the zero fix", Fix{Accuracy: 1e6, Source: "a"}, Fix{}, true},
		{"lower accuracy wins", Fix{Accuracy: 10, Source: "a"}, Fix{Accuracy: 100, Source: "b"}, true},
		{"higher accuracy loses", Fix{Accuracy: 100, Source: "a"}, Fix{Accuracy: 10, Source: "b"}, false},
		{"equal accuracy keeps the previous fix", Fix{Accuracy: 10, Source: "a"}, Fix{Accuracy: 10, Source: "b"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fix.BetterThan(tc.prev) != tc.better {
				t.Errorf("expected BetterThan to be %t", tc.better)
			}
		})
	}
}
