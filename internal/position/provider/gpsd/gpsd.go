// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpsd implements a position.Provider backed by a local gpsd daemon.
package gpsd

import (
	"context"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/position"
)

const (
	// DefaultHost is the default gpsd host.
	DefaultHost = "localhost"
	// DefaultPort is the default gpsd port.
	DefaultPort = "2947"
	// fixTimeout bounds how long we wait for a usable TPV report.
	fixTimeout = time.Second * 10

	// Fallback error radii when gpsd does not report one itself.
	fallbackAccuracy3DFix = 10 // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25 // worse than 3D, but still accurate enough

	name = "gpsd"
)

// PositionGPSDProvider performs one-shot position lookups via gpsd. Each Locate
// call dials gpsd, waits for the first TPV report with at least a 2D fix and
// returns it.
type PositionGPSDProvider struct {
	name string
	addr string
}

// New returns a gpsd provider for the given host and port. Empty values fall back
// to the gpsd defaults.
func New(host, port string) *PositionGPSDProvider {
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = DefaultPort
	}
	return &PositionGPSDProvider{
		name: name,
		addr: net.JoinHostPort(host, port),
	}
}

func (p *PositionGPSDProvider) Name() string {
	return p.name
}

// Locate satisfies the position.Provider interface.
func (p *PositionGPSDProvider) Locate(ctx context.Context) (position.Fix, error) {
	session, err := gpsd.Dial(p.addr)
	if err != nil {
		return position.Fix{}, fmt.Errorf("failed to connect to gpsd at %q: %w", p.addr, err)
	}

	fixes := make(chan position.Fix, 1)
	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		// Need at least a 2D fix
		if tpv.Mode < gpsd.Mode2D {
			return
		}

		fix := position.Fix{
			Coordinate: geo.Coordinate{
				Lat: geo.Truncate(tpv.Lat, geo.TruncPrecision),
				Lon: geo.Truncate(tpv.Lon, geo.TruncPrecision),
			},
			Accuracy: reportAccuracy(tpv),
			Source:   name,
			At:       time.Now(),
		}
		select {
		case fixes <- fix:
		default:
		}
	})

	// Watch returns a channel that closes when the watch ends (e.g. connection
	// lost). go-gpsd has no Close(); abandoning the session tears it down.
	done := session.Watch()

	timeout := time.NewTimer(fixTimeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return position.Fix{}, ctx.Err()
	case <-timeout.C:
		return position.Fix{}, fmt.Errorf("timed out waiting for a gpsd fix: %w", position.ErrNoFix)
	case <-done:
		return position.Fix{}, fmt.Errorf("gpsd connection ended before a fix was seen: %w", position.ErrNoFix)
	case fix := <-fixes:
		return fix, nil
	}
}

// reportAccuracy derives an error radius in meters from a TPV report. gpsd's
// per-axis estimates are used when present, otherwise a fix-mode fallback.
func reportAccuracy(tpv *gpsd.TPVReport) float64 {
	if acc := math.Max(tpv.Epx, tpv.Epy); acc > 0 {
		return geo.Truncate(acc, geo.TruncPrecision)
	}
	if tpv.Mode >= gpsd.Mode3D {
		return fallbackAccuracy3DFix
	}
	return fallbackAccuracy2DFix
}
