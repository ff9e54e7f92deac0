// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoip implements a coarse position.Provider based on the client's IP
// address. It is the fallback of last resort; the reported accuracy is city-level
// at best.
package geoip

import (
	"context"
	"fmt"
	"time"

	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/httpc"
	"github.com/tversen/mappick/internal/position"
)

const (
	// APIEndpoint is the GeoIP lookup endpoint.
	APIEndpoint = "https://reallyfreegeoip.org/json/"
	// LookupTimeout bounds a single lookup.
	LookupTimeout = time.Second * 5
	// cityAccuracy is the error radius assumed for an IP-based position.
	cityAccuracy = 25000

	name = "geoip"
)

// PositionGeoIPProvider resolves the device position from its public IP address.
type PositionGeoIPProvider struct {
	name     string
	endpoint string
	http     *httpc.Client
}

// APIResult is shaped for the GeoIP API response.
type APIResult struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country_name"`
	RegionCode  string  `json:"region_code,omitempty"`
	Region      string  `json:"region_name,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	TimeZone    string  `json:"time_zone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	MetroCode   int     `json:"metro_code"`
}

// New returns a GeoIP provider using the given HTTP client.
func New(client *httpc.Client) *PositionGeoIPProvider {
	return &PositionGeoIPProvider{
		name:     name,
		endpoint: APIEndpoint,
		http:     client,
	}
}

func (p *PositionGeoIPProvider) Name() string {
	return p.name
}

// Locate satisfies the position.Provider interface.
func (p *PositionGeoIPProvider) Locate(ctx context.Context) (position.Fix, error) {
	result := new(APIResult)
	if _, err := p.http.GetWithTimeout(ctx, p.endpoint, result, nil, nil, LookupTimeout); err != nil {
		return position.Fix{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}
	if result.Latitude == 0 && result.Longitude == 0 {
		return position.Fix{}, position.ErrNoFix
	}

	return position.Fix{
		Coordinate: geo.Coordinate{
			Lat: geo.Truncate(result.Latitude, geo.TruncPrecision),
			Lon: geo.Truncate(result.Longitude, geo.TruncPrecision),
		},
		Accuracy: cityAccuracy,
		Source:   name,
		At:       time.Now(),
	}, nil
}
