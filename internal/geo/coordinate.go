// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package geo holds the coordinate value types shared by the mappick packages.
package geo

import "math"

const (
	// EarthRadius is the mean earth radius in meters.
	EarthRadius = 6371000.0
	// TruncPrecision is the decimal precision coordinates are truncated to before
	// they leave a positioning provider (~11m at the equator).
	TruncPrecision = 4
)

// Coordinate represents a geographic coordinate. It is an immutable value type,
// copied rather than shared.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Valid checks if the coordinate is valid according to the EPSG logic
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// DistanceTo returns the great-circle distance in meters between c and other,
// calculated with the Haversine formula.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	dLat := (other.Lat - c.Lat) * math.Pi / 180
	dLon := (other.Lon - c.Lon) * math.Pi / 180
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

// MarkerTarget is a one-shot instruction to reposition the map camera. It is
// produced by an initial-override provider and consumed once at startup.
type MarkerTarget struct {
	Coordinate Coordinate
	Zoom       *float64
}

// Truncate cuts off a float at the given decimal precision without rounding.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
