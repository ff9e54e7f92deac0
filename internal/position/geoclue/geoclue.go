// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoclue adapts the freedesktop GeoClue2 DBus service to the
// position.Authority contract. GeoClue has no queryable permission state; access
// is authorized by an agent when a client starts. The adapter therefore probes
// authorization by starting a throwaway client and remembers the outcome.
package geoclue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/tversen/mappick/internal/logger"
	"github.com/tversen/mappick/internal/position"
)

const (
	dbusListNamesMethod    = "org.freedesktop.DBus.ListNames"
	dbusListActivatable    = "org.freedesktop.DBus.ListActivatableNames"
	geoclueBusName         = "org.freedesktop.GeoClue2"
	geoclueManagerPath     = "/org/freedesktop/GeoClue2/Manager"
	geoclueGetClientMethod = "org.freedesktop.GeoClue2.Manager.GetClient"
	geoclueClientIface     = "org.freedesktop.GeoClue2.Client"
	geoclueAgentBusName    = "org.freedesktop.GeoClue2.DemoAgent"

	accessDeniedError = "org.freedesktop.DBus.Error.AccessDenied"
)

// Authority implements position.Authority on top of GeoClue2.
type Authority struct {
	desktopID string
	logger    *logger.Logger

	mu    sync.Mutex
	state position.PermissionState
	known bool
}

// New returns an Authority identifying itself to the GeoClue agent with the given
// desktop ID.
func New(desktopID string, log *logger.Logger) *Authority {
	return &Authority{
		desktopID: desktopID,
		logger:    log,
	}
}

// ServiceEnabled reports whether the GeoClue2 service is running or activatable on
// the system bus.
func (a *Authority) ServiceEnabled(ctx context.Context) (enabled bool, err error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close system bus: %w", closeErr))
		}
	}()

	for _, method := range []string{dbusListNamesMethod, dbusListActivatable} {
		var list []string
		if err = conn.BusObject().Call(method, 0).Store(&list); err != nil {
			return false, fmt.Errorf("failed to call DBus %s: %w", method, err)
		}
		for _, v := range list {
			if strings.EqualFold(v, geoclueBusName) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Check returns the remembered permission state. Before the first authorization
// probe the state is undetermined, unless no agent is available to prompt at all,
// which is reported as a permanent denial.
func (a *Authority) Check(ctx context.Context) (position.PermissionState, error) {
	a.mu.Lock()
	if a.known {
		state := a.state
		a.mu.Unlock()
		return state, nil
	}
	a.mu.Unlock()

	agentRunning, err := a.agentIsRunning(ctx)
	if err != nil {
		return position.PermissionNotDetermined, err
	}
	if !agentRunning {
		// Without an agent nobody can authorize us; a prompt is impossible.
		return position.PermissionDeniedForever, nil
	}
	return position.PermissionNotDetermined, nil
}

// Request probes authorization by starting a throwaway GeoClue client. The agent
// decides whether the desktop ID is allowed; the outcome is remembered for
// subsequent Check calls.
func (a *Authority) Request(ctx context.Context) (state position.PermissionState, err error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return position.PermissionNotDetermined, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close system bus: %w", closeErr))
		}
	}()

	manager := conn.Object(geoclueBusName, dbus.ObjectPath(geoclueManagerPath))
	var clientPath dbus.ObjectPath
	if err = manager.CallWithContext(ctx, geoclueGetClientMethod, 0).Store(&clientPath); err != nil {
		return position.PermissionNotDetermined, fmt.Errorf("failed to get GeoClue client: %w", err)
	}

	client := conn.Object(geoclueBusName, clientPath)
	if err = client.SetProperty(geoclueClientIface+".DesktopId", dbus.MakeVariant(a.desktopID)); err != nil {
		return position.PermissionNotDetermined, fmt.Errorf("failed to set desktop ID: %w", err)
	}

	if err = client.CallWithContext(ctx, geoclueClientIface+".Start", 0).Err; err != nil {
		var dbusErr dbus.Error
		if errors.As(err, &dbusErr) && dbusErr.Name == accessDeniedError {
			a.remember(position.PermissionDenied)
			return position.PermissionDenied, nil
		}
		return position.PermissionNotDetermined, fmt.Errorf("failed to start GeoClue client: %w", err)
	}

	if err = client.CallWithContext(ctx, geoclueClientIface+".Stop", 0).Err; err != nil {
		a.logger.Debug("failed to stop GeoClue probe client", logger.Err(err))
	}

	a.remember(position.PermissionGrantedWhileInUse)
	return position.PermissionGrantedWhileInUse, nil
}

func (a *Authority) remember(state position.PermissionState) {
	a.mu.Lock()
	a.state = state
	a.known = true
	a.mu.Unlock()
}

// agentIsRunning checks the session bus for a registered GeoClue agent.
func (a *Authority) agentIsRunning(ctx context.Context) (isRunning bool, err error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close session bus: %w", closeErr))
		}
	}()

	var list []string
	if err = conn.BusObject().Call(dbusListNamesMethod, 0).Store(&list); err != nil {
		return false, fmt.Errorf("failed to call DBus ListNames: %w", err)
	}
	for _, v := range list {
		if strings.EqualFold(v, geoclueAgentBusName) {
			return true, nil
		}
	}
	return false, nil
}
