// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package picker implements the location-pick resolution state machine. A
// Controller tracks the map's current target coordinate across camera events,
// resolves it to an address when the camera settles and publishes the resulting
// pick to its observer.
package picker

import (
	"context"
	"errors"
	"sync"

	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/geocode"
	"github.com/tversen/mappick/internal/logger"
)

// ErrNoOverride is returned by OnSurfaceReady when no override provider is
// configured. The startup sequence is skipped entirely in that case.
var ErrNoOverride = errors.New("no initial-position override configured")

// Pick is the currently resolvable selection: a coordinate together with its
// resolved place. A Pick is always fully populated; the absence of a pick is
// modeled as a nil pointer, never as a partially filled record.
type Pick struct {
	Coordinate geo.Coordinate
	Place      geocode.Place
}

// Address returns the formatted primary display line for the pick.
func (p Pick) Address() string {
	return geocode.FormatAddress(p.Place)
}

// Surface is the map collaborator the controller issues camera commands to. The
// map itself reports its lifecycle through the controller's On* event methods.
type Surface interface {
	AnimateCamera(ctx context.Context, coord geo.Coordinate, zoom *float64) error
}

// OverrideFunc asynchronously supplies an initial camera target. It is invoked at
// most once, on surface readiness, and only when configured.
type OverrideFunc func(ctx context.Context) (geo.MarkerTarget, error)

// Options configures a Controller.
type Options struct {
	// InitialTarget seeds the target coordinate before the first camera event.
	InitialTarget *geo.Coordinate
	// Override, when set, is awaited once on surface readiness and recenters the
	// camera on its result.
	Override OverrideFunc
	// OnPickChanged is invoked whenever a resolution completes and replaces the
	// current pick, including when it clears it. A nil argument means no pick.
	OnPickChanged func(*Pick)
	// OnResult receives the final pick when the user confirms the selection.
	OnResult func(Pick)
}

// Controller owns the pick-resolution state. All state transitions are serialized
// through its mutex; resolutions run asynchronously and re-synchronize on
// completion. Results of superseded resolutions are discarded via a
// monotonically increasing token, so the most recent camera settle always wins
// regardless of lookup completion order.
type Controller struct {
	logger  *logger.Logger
	coder   geocode.Geocoder
	surface Surface
	opts    Options

	mu     sync.Mutex
	target *geo.Coordinate
	pick   *Pick
	moving bool
	seq    uint64
	done   bool
}

// New returns a Controller resolving picks through coder and steering surface.
func New(log *logger.Logger, coder geocode.Geocoder, surface Surface, opts Options) *Controller {
	ctrl := &Controller{
		logger:  log,
		coder:   coder,
		surface: surface,
		opts:    opts,
	}
	if opts.InitialTarget != nil {
		target := *opts.InitialTarget
		ctrl.target = &target
	}
	return ctrl
}

// OnSurfaceReady runs the one-time startup sequence: it awaits the configured
// override provider, retargets the controller, triggers a resolution for the
// override coordinate and recenters the camera on it. Without a configured
// override it is a no-op returning ErrNoOverride; no resolution is triggered
// until the first camera event.
func (c *Controller) OnSurfaceReady(ctx context.Context) error {
	if c.opts.Override == nil {
		return ErrNoOverride
	}

	marker, err := c.opts.Override(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	target := marker.Coordinate
	c.target = &target
	c.mu.Unlock()

	c.triggerResolve(ctx)

	if err := c.surface.AnimateCamera(ctx, marker.Coordinate, marker.Zoom); err != nil {
		return err
	}
	return nil
}

// OnCameraMoveStarted marks the map as actively moving.
func (c *Controller) OnCameraMoveStarted() {
	c.mu.Lock()
	c.moving = true
	c.mu.Unlock()
}

// OnCameraMove updates the target coordinate. Movement events are noisy and
// high-frequency, so they never trigger a resolution on their own; that happens
// only when the camera settles.
func (c *Controller) OnCameraMove(coord geo.Coordinate) {
	c.mu.Lock()
	c.target = &coord
	c.mu.Unlock()
}

// OnCameraIdle marks the map as settled and triggers a resolution against the
// current target coordinate. This is the sole steady-state resolution trigger.
func (c *Controller) OnCameraIdle(ctx context.Context) {
	c.mu.Lock()
	c.moving = false
	c.mu.Unlock()

	c.triggerResolve(ctx)
}

// SelectHere confirms the current pick. It delivers the pick to the result sink
// and ends the session. When no pick is resolved it reports false and has no
// observable effect.
func (c *Controller) SelectHere() (Pick, bool) {
	c.mu.Lock()
	if c.pick == nil || c.done {
		c.mu.Unlock()
		return Pick{}, false
	}
	c.done = true
	pick := *c.pick
	c.mu.Unlock()

	if c.opts.OnResult != nil {
		c.opts.OnResult(pick)
	}
	return pick, true
}

// CurrentPick returns a copy of the currently resolved pick, or nil when no pick
// is resolved.
func (c *Controller) CurrentPick() *Pick {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pick == nil {
		return nil
	}
	pick := *c.pick
	return &pick
}

// IsMoving reports whether a camera gesture is in progress.
func (c *Controller) IsMoving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moving
}

// Target returns the current target coordinate, if any.
func (c *Controller) Target() (geo.Coordinate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return geo.Coordinate{}, false
	}
	return *c.target, true
}

// triggerResolve snapshots the target coordinate, issues a fresh resolution token
// and starts the lookup. Without a target coordinate it is a no-op.
func (c *Controller) triggerResolve(ctx context.Context) {
	c.mu.Lock()
	if c.target == nil || c.done {
		c.mu.Unlock()
		return
	}
	c.seq++
	token := c.seq
	coord := *c.target
	c.mu.Unlock()

	go c.resolve(ctx, token, coord)
}

// resolve performs the address lookup and applies its outcome, unless a newer
// resolution has been issued in the meantime. An empty result and a failed
// lookup both clear the pick; a stale pick is never shown.
func (c *Controller) resolve(ctx context.Context, token uint64, coord geo.Coordinate) {
	place, err := c.coder.Reverse(ctx, coord)
	if err != nil {
		c.logger.Warn("reverse geocoding failed", "lat", coord.Lat, "lon", coord.Lon, logger.Err(err))
	}

	c.mu.Lock()
	if token != c.seq || c.done {
		// A newer settle superseded this lookup; its result no longer matters.
		c.mu.Unlock()
		return
	}
	if err != nil || !place.Found {
		c.pick = nil
	} else {
		c.pick = &Pick{Coordinate: coord, Place: place}
	}
	var snapshot *Pick
	if c.pick != nil {
		pick := *c.pick
		snapshot = &pick
	}
	notify := c.opts.OnPickChanged
	c.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}
