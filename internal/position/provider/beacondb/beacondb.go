// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package beacondb implements a position.Provider that geolocates the device from
// nearby wifi access points via the beacondb.net ichnaea-compatible API.
package beacondb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/httpc"
	"github.com/tversen/mappick/internal/position"
)

const (
	// APIEndpoint is the beacondb geolocate endpoint.
	APIEndpoint = "https://api.beacondb.net/v1/geolocate"
	// LookupTimeout bounds a single geolocate call.
	LookupTimeout = time.Second * 5

	name = "beacondb"
)

// PositionBeaconDBProvider scans wifi access points and submits them to the
// geolocate API for a position estimate.
type PositionBeaconDBProvider struct {
	name     string
	endpoint string
	http     *httpc.Client
	wlan     *wifi.Client
}

// APIResult is shaped for the geolocate API response.
type APIResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

// WirelessNetwork describes a single visible access point in the geolocate request.
type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

// New returns a beacondb provider using the given HTTP client.
func New(client *httpc.Client) (*PositionBeaconDBProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	wlan, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create wifi client: %w", err)
	}
	return &PositionBeaconDBProvider{
		name:     name,
		endpoint: APIEndpoint,
		http:     client,
		wlan:     wlan,
	}, nil
}

func (p *PositionBeaconDBProvider) Name() string {
	return p.name
}

// Locate satisfies the position.Provider interface. The API is asked to consider
// the client IP as well, so a lookup can succeed even without visible networks.
func (p *PositionBeaconDBProvider) Locate(ctx context.Context) (position.Fix, error) {
	networks, err := p.wifiAccessPoints()
	if err != nil {
		return position.Fix{}, err
	}

	type request struct {
		ConsiderIP   bool              `json:"considerIp"`
		Accesspoints []WirelessNetwork `json:"wifiAccessPoints,omitempty"`
	}
	req := request{
		ConsiderIP:   true,
		Accesspoints: networks,
	}
	bodyBuffer := bytes.NewBuffer(nil)
	if err = json.NewEncoder(bodyBuffer).Encode(req); err != nil {
		return position.Fix{}, fmt.Errorf("failed to encode wifi list to JSON: %w", err)
	}

	result := new(APIResult)
	if _, err = p.http.PostWithTimeout(ctx, p.endpoint, result, bodyBuffer,
		map[string]string{"Content-Type": "application/json"}, LookupTimeout); err != nil {
		return position.Fix{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	return position.Fix{
		Coordinate: geo.Coordinate{
			Lat: geo.Truncate(result.Location.Latitude, geo.TruncPrecision),
			Lon: geo.Truncate(result.Location.Longitude, geo.TruncPrecision),
		},
		Accuracy: geo.Truncate(result.Accuracy, geo.TruncPrecision),
		Source:   name,
		At:       time.Now(),
	}, nil
}

func (p *PositionBeaconDBProvider) wifiAccessPoints() ([]WirelessNetwork, error) {
	ifaces, err := p.wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var list []WirelessNetwork
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		aps, err := p.wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			// Hidden SSIDs and networks opting out of mapping are skipped.
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}
