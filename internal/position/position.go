// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package position resolves the device's current position. It fans a one-shot
// lookup out to the configured providers and gates access behind the location
// permission protocol.
package position

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/logger"
)

const accuracyEpsilon = 1e-6

// ErrNoFix indicates that no provider produced a usable position.
var ErrNoFix = errors.New("no position fix available")

// Fix is a single device position estimate.
type Fix struct {
	Coordinate geo.Coordinate
	// Accuracy is the estimated error radius in meters. Lower is better; zero
	// means the provider could not estimate it and the fix is considered unusable.
	Accuracy float64
	Source   string
	At       time.Time
}

// BetterThan reports whether f is a better position estimate than prev. An empty
// previous fix is always beaten; otherwise the lower error radius wins.
func (f Fix) BetterThan(prev Fix) bool {
	if prev.Source == "" {
		return true
	}
	return f.Accuracy < prev.Accuracy-accuracyEpsilon
}

// Provider performs a one-shot device position lookup.
type Provider interface {
	Name() string
	Locate(ctx context.Context) (Fix, error)
}

// Locator queries all providers concurrently and returns the most accurate fix.
type Locator struct {
	logger    *logger.Logger
	providers []Provider
}

// NewLocator returns a Locator for the given providers.
func NewLocator(log *logger.Logger, providers ...Provider) *Locator {
	return &Locator{
		logger:    log,
		providers: providers,
	}
}

// Locate fans the lookup out to every provider and picks the fix with the lowest
// error radius. Provider failures are logged and skipped; Locate only fails when
// no provider delivers a usable fix.
func (l *Locator) Locate(ctx context.Context) (Fix, error) {
	fixes := make(chan Fix, len(l.providers))

	var wg sync.WaitGroup
	for _, p := range l.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			fix, err := l.safeLocate(ctx, p)
			if err != nil {
				l.logger.Debug("position provider failed", "provider", p.Name(), logger.Err(err))
				return
			}
			if fix.Accuracy <= 0 || !fix.Coordinate.Valid() {
				l.logger.Debug("position provider returned unusable fix", "provider", p.Name())
				return
			}
			fixes <- fix
		}(p)
	}
	wg.Wait()
	close(fixes)

	var best Fix
	for fix := range fixes {
		if fix.BetterThan(best) {
			best = fix
		}
	}
	if best.Source == "" {
		return Fix{}, ErrNoFix
	}
	return best, nil
}

// safeLocate invokes the provider's Locate and recovers from potential panics.
func (l *Locator) safeLocate(ctx context.Context, provider Provider) (fix Fix, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrNoFix
		}
	}()
	return provider.Locate(ctx)
}
