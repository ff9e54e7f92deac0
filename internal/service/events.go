// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"bufio"
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/logger"
	"github.com/tversen/mappick/internal/picker"
	"github.com/tversen/mappick/internal/position"
)

// Event feed commands the host map surface reports, one per line:
//
//	ready            the map surface has been created
//	start            a camera gesture started
//	move LAT LON     the camera target moved
//	idle             the camera settled
//	locate           recenter on the device position (permission-gated)
//	select           confirm the current pick
const (
	eventReady  = "ready"
	eventStart  = "start"
	eventMove   = "move"
	eventIdle   = "idle"
	eventLocate = "locate"
	eventSelect = "select"
)

// Error reason codes published when a locate request fails.
const (
	reasonServiceDisabled = "service_disabled"
	reasonDeniedForever   = "denied_forever"
	reasonNotGranted      = "not_granted"
	reasonNoPosition      = "no_position"
)

// processEvents consumes camera events line by line until the feed or the
// context ends.
func (s *Service) processEvents(ctx context.Context) {
	scanner := bufio.NewScanner(s.input)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if done := s.handleEvent(ctx, scanner.Text()); done {
			return
		}
	}
	// A read failure caused by the shutdown closing the feed is expected.
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Error("failed to read event feed", logger.Err(err))
	}
}

// handleEvent dispatches a single event line. It reports true once the session
// is finished.
func (s *Service) handleEvent(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case eventReady:
		if err := s.controller.OnSurfaceReady(ctx); err != nil {
			if errors.Is(err, picker.ErrNoOverride) {
				s.logger.Debug("no initial-position override configured")
				return false
			}
			s.logger.Error("startup sequence failed", logger.Err(err))
		}
	case eventStart:
		s.controller.OnCameraMoveStarted()
	case eventMove:
		coord, err := parseMove(fields)
		if err != nil {
			s.logger.Warn("ignoring malformed move event", "line", line, logger.Err(err))
			return false
		}
		s.controller.OnCameraMove(coord)
	case eventIdle:
		s.controller.OnCameraIdle(ctx)
	case eventLocate:
		s.locate(ctx)
	case eventSelect:
		if _, ok := s.controller.SelectHere(); !ok {
			s.logger.Warn("selection rejected, no resolved pick")
			return false
		}
		return true
	default:
		s.logger.Warn("ignoring unknown event", "event", fields[0])
	}
	return false
}

// locate resolves the device position behind the permission gate and recenters
// the map on it. Gate failures are published with a reason code for the host to
// act on (e.g. pointing the user at the system settings).
func (s *Service) locate(ctx context.Context) {
	// The timeout covers the gate acquisition only. The resolution triggered by
	// OnCameraIdle runs beyond this call and must stay on the event context, or
	// its lookup would be cancelled the moment locate returns.
	gateCtx, cancel := context.WithTimeout(ctx, s.config.Position.LocateTimeout)
	defer cancel()

	coord, err := s.gate.AcquireCurrent(gateCtx)
	if err != nil {
		s.logger.Warn("failed to acquire device position", logger.Err(err))
		if emitErr := s.emit(outputData{Type: OutputError, Reason: locateReason(err)}); emitErr != nil {
			s.logger.Error("failed to publish locate error", logger.Err(emitErr))
		}
		return
	}

	s.controller.OnCameraMove(coord)
	s.controller.OnCameraIdle(ctx)
	if err := s.AnimateCamera(ctx, coord, nil); err != nil {
		s.logger.Error("failed to publish camera command", logger.Err(err))
	}
}

func locateReason(err error) string {
	switch {
	case errors.Is(err, position.ErrServiceDisabled):
		return reasonServiceDisabled
	case errors.Is(err, position.ErrDeniedForever):
		return reasonDeniedForever
	case errors.Is(err, position.ErrNotGranted):
		return reasonNotGranted
	}
	return reasonNoPosition
}

func parseMove(fields []string) (geo.Coordinate, error) {
	if len(fields) != 3 {
		return geo.Coordinate{}, errors.New("move event requires a latitude and a longitude")
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return geo.Coordinate{}, errors.New("invalid latitude")
	}
	lon, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return geo.Coordinate{}, errors.New("invalid longitude")
	}
	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return geo.Coordinate{}, errors.New("coordinate out of range")
	}
	return coord, nil
}
