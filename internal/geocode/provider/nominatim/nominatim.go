// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package nominatim implements the geocode.Geocoder contract on top of the OSM
// Nominatim reverse API.
package nominatim

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/geocode"
	"github.com/tversen/mappick/internal/httpc"
)

const (
	// DefaultEndpoint is the public OSM Nominatim reverse endpoint.
	DefaultEndpoint = "https://nominatim.openstreetmap.org/reverse"
	// APITimeout is the per-lookup timeout.
	APITimeout = time.Second * 10
	// requestsPerSec follows the Nominatim usage policy of at most one request
	// per second against the public instance.
	requestsPerSec = 1

	name = "osm-nominatim"
)

// Nominatim resolves coordinates against a Nominatim instance. Requests are paced
// through a rate limiter so rapid lookups queue instead of violating the API policy.
type Nominatim struct {
	endpoint string
	email    string
	http     *httpc.Client
	lang     language.Tag
	limiter  *rate.Limiter
}

// ReverseResult is shaped for the jsonv2 reverse API response.
type ReverseResult struct {
	Error       string  `json:"error"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Address holds the address details of a jsonv2 reverse API response.
type Address struct {
	HouseNumber  string `json:"house_number"`
	Road         string `json:"road"`
	Suburb       string `json:"suburb"`
	CityDistrict string `json:"city_district"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

// Option allows overriding defaults of a Nominatim instance.
type Option func(*Nominatim)

// WithEndpoint points the provider at a custom Nominatim instance.
func WithEndpoint(endpoint string) Option {
	return func(n *Nominatim) {
		if endpoint != "" {
			n.endpoint = endpoint
		}
	}
}

// WithEmail sets the contact email the usage policy asks for on heavy use.
func WithEmail(email string) Option {
	return func(n *Nominatim) {
		n.email = email
	}
}

// WithRate overrides the default request pacing.
func WithRate(requestsPerSecond float64) Option {
	return func(n *Nominatim) {
		if requestsPerSecond > 0 {
			n.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// New returns a new Nominatim geocoder using the given HTTP client and language.
func New(client *httpc.Client, lang language.Tag, opts ...Option) *Nominatim {
	coder := &Nominatim{
		endpoint: DefaultEndpoint,
		http:     client,
		lang:     lang,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
	for _, opt := range opts {
		opt(coder)
	}
	return coder
}

func (n *Nominatim) Name() string {
	return name
}

// Reverse satisfies the geocode.Geocoder interface. A response without any address
// candidate is reported as a not-found Place, not as an error; transport failures
// wrap geocode.ErrUnavailable.
func (n *Nominatim) Reverse(ctx context.Context, coord geo.Coordinate) (geocode.Place, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return geocode.Place{}, fmt.Errorf("%w: rate limiter wait aborted: %w", geocode.ErrUnavailable, err)
	}

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", fmt.Sprintf("%f", coord.Lat))
	query.Set("lon", fmt.Sprintf("%f", coord.Lon))
	query.Set("accept-language", n.lang.String())
	// Building-level detail; coarser zooms drop the road and house number.
	query.Set("zoom", "18")
	if n.email != "" {
		query.Set("email", n.email)
	}

	var result ReverseResult
	if _, err := n.http.GetWithTimeout(ctx, n.endpoint, &result, query, nil, APITimeout); err != nil {
		return geocode.Place{}, fmt.Errorf("%w: failed to fetch reverse address details from Nominatim API: %w",
			geocode.ErrUnavailable, err)
	}

	// Nominatim reports "Unable to geocode" for coordinates without any candidate.
	if result.Error != "" || emptyAddress(result.Address) {
		return geocode.Place{}, nil
	}

	place := geocode.Place{
		Found:       true,
		Street:      street(result.Address),
		SubLocality: subLocality(result.Address),
		Locality:    locality(result.Address),
		Country:     result.Address.Country,
		DisplayName: result.DisplayName,
		Postcode:    result.Address.Postcode,
	}
	return place, nil
}

func street(addr Address) string {
	if addr.Road != "" && addr.HouseNumber != "" {
		return fmt.Sprintf("%s %s", addr.Road, addr.HouseNumber)
	}
	return addr.Road
}

func subLocality(addr Address) string {
	if addr.Suburb != "" {
		return addr.Suburb
	}
	return addr.CityDistrict
}

func locality(addr Address) string {
	for _, candidate := range []string{addr.City, addr.Town, addr.Village, addr.Municipality} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func emptyAddress(addr Address) bool {
	return strings.TrimSpace(addr.Road+addr.Suburb+addr.CityDistrict+addr.City+addr.Town+
		addr.Village+addr.Municipality+addr.State+addr.Country) == ""
}
