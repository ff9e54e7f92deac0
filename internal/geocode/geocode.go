// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode defines the reverse-geocoding contract and the address formatting
// logic used by the picker.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/tversen/mappick/internal/geo"
)

// ErrUnavailable indicates that a geocoding provider could not be reached or refused
// to answer. It is distinct from an empty result, which is reported via Place.Found.
var ErrUnavailable = errors.New("geocoding service unavailable")

// Place is a structured reverse-geocoding result. It is immutable once constructed.
// Found reports whether the provider yielded any candidate at all; a Place with
// Found set to false carries no address data.
type Place struct {
	Found bool

	Street      string
	SubLocality string
	Locality    string
	Country     string

	DisplayName string
	Postcode    string

	CacheHit bool
}

// Geocoder is the contract for coordinate-to-address lookup providers. Reverse
// returns the first candidate for the coordinate, or a Place with Found set to
// false when the provider yields no candidates. Transport and provider failures
// wrap ErrUnavailable.
type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, coord geo.Coordinate) (Place, error)
}

// FormatAddress renders the primary display line for a place: street, sub-locality
// and locality, in that order, separated by ", ". Empty components are skipped
// entirely. The country is deliberately not part of this line; callers surface it
// as a separate secondary label.
func FormatAddress(place Place) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{place.Street, place.SubLocality, place.Locality} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}
