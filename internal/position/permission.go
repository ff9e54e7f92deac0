// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/tversen/mappick/internal/geo"
)

// Failure modes of the permission gate. Callers must branch on all three, e.g. to
// point the user at the system settings.
var (
	// ErrServiceDisabled indicates the device location service is switched off.
	ErrServiceDisabled = errors.New("location service is disabled")
	// ErrDeniedForever indicates the user permanently denied location access and
	// no further prompt is possible.
	ErrDeniedForever = errors.New("location permission denied permanently")
	// ErrNotGranted indicates the user denied location access when prompted in
	// this session.
	ErrNotGranted = errors.New("location permission not granted")
)

// PermissionState is the current authorization state for location access.
type PermissionState int

const (
	// PermissionNotDetermined means the user has not been asked yet.
	PermissionNotDetermined PermissionState = iota
	// PermissionDenied means the user denied access but may be asked again.
	PermissionDenied
	// PermissionDeniedForever means the user denied access permanently.
	PermissionDeniedForever
	// PermissionGrantedWhileInUse means access is granted while the app is in use.
	PermissionGrantedWhileInUse
	// PermissionGrantedAlways means access is granted unconditionally.
	PermissionGrantedAlways
)

// String satisfies the fmt.Stringer interface for log output.
func (s PermissionState) String() string {
	switch s {
	case PermissionNotDetermined:
		return "not determined"
	case PermissionDenied:
		return "denied"
	case PermissionDeniedForever:
		return "denied forever"
	case PermissionGrantedWhileInUse:
		return "granted while in use"
	case PermissionGrantedAlways:
		return "granted always"
	}
	return "unknown"
}

// granted reports whether the state allows a position lookup.
func (s PermissionState) granted() bool {
	return s == PermissionGrantedWhileInUse || s == PermissionGrantedAlways
}

// Authority is the platform hook the gate consults for the location service and
// permission state.
type Authority interface {
	// ServiceEnabled reports whether the device location service is switched on.
	ServiceEnabled(ctx context.Context) (bool, error)
	// Check returns the current permission state without prompting.
	Check(ctx context.Context) (PermissionState, error)
	// Request prompts the user once and returns the resulting state.
	Request(ctx context.Context) (PermissionState, error)
}

// Positioner is the position lookup the gate performs once access is granted.
// *Locator satisfies it.
type Positioner interface {
	Locate(ctx context.Context) (Fix, error)
}

// Gate resolves the device's current coordinate behind the permission protocol:
// service check first, then at most one re-prompt when the permission was denied
// but not permanently. This is a deliberate one-shot escalation, not a loop.
type Gate struct {
	authority Authority
	locator   Positioner
}

// NewGate returns a Gate using the given authority and position source.
func NewGate(authority Authority, locator Positioner) *Gate {
	return &Gate{
		authority: authority,
		locator:   locator,
	}
}

// AcquireCurrent returns the device's current coordinate, or one of
// ErrServiceDisabled, ErrDeniedForever and ErrNotGranted. A disabled service
// fails immediately without touching the permission state.
func (g *Gate) AcquireCurrent(ctx context.Context) (geo.Coordinate, error) {
	enabled, err := g.authority.ServiceEnabled(ctx)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to check location service state: %w", err)
	}
	if !enabled {
		return geo.Coordinate{}, ErrServiceDisabled
	}

	state, err := g.authority.Check(ctx)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to check location permission: %w", err)
	}
	if state == PermissionDeniedForever {
		return geo.Coordinate{}, ErrDeniedForever
	}
	if !state.granted() {
		state, err = g.authority.Request(ctx)
		if err != nil {
			return geo.Coordinate{}, fmt.Errorf("failed to request location permission: %w", err)
		}
		if !state.granted() {
			return geo.Coordinate{}, ErrNotGranted
		}
	}

	fix, err := g.locator.Locate(ctx)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to acquire current position: %w", err)
	}
	return fix.Coordinate, nil
}
