// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package config loads and validates the mappick configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Xuanwo/go-locale"
	"github.com/kkyr/fig"
	"golang.org/x/text/language"
)

const configEnv = "MAPPICK"

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Geocoder struct {
		// Endpoint overrides the Nominatim reverse endpoint; empty selects the
		// public OSM instance.
		Endpoint string `fig:"endpoint"`
		// Email is the contact address the Nominatim usage policy asks for.
		Email string `fig:"email"`
		// RequestsPerSec paces lookups against the provider.
		RequestsPerSec float64       `fig:"requests_per_sec" default:"1"`
		CacheHitTTL    time.Duration `fig:"cache_hit_ttl" default:"1h"`
		CacheMissTTL   time.Duration `fig:"cache_miss_ttl" default:"10m"`
	} `fig:"geocoder"`

	Position struct {
		DesktopID       string        `fig:"desktop_id" default:"mappick"`
		GPSDHost        string        `fig:"gpsd_host"`
		GPSDPort        string        `fig:"gpsd_port"`
		DisableGPSD     bool          `fig:"disable_gpsd"`
		DisableBeaconDB bool          `fig:"disable_beacondb"`
		DisableGeoIP    bool          `fig:"disable_geoip"`
		LocateTimeout   time.Duration `fig:"locate_timeout" default:"15s"`
	} `fig:"position"`

	Picker struct {
		// UseInitialTarget seeds the controller with initial_lat/initial_lon
		// before the first camera event.
		UseInitialTarget bool    `fig:"use_initial_target"`
		InitialLat       float64 `fig:"initial_lat"`
		InitialLon       float64 `fig:"initial_lon"`
		// DefaultZoom is used for camera animations without an explicit zoom.
		DefaultZoom float64 `fig:"default_zoom" default:"16"`
	} `fig:"picker"`

	Intervals struct {
		Output     time.Duration `fig:"output" default:"2s"`
		CacheSweep time.Duration `fig:"cache_sweep" default:"10m"`
	} `fig:"intervals"`
}

// NewFromFile loads the Config from the given file, overlaid with the environment.
func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// New loads the Config from the environment alone.
func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate normalizes defaults and rejects out-of-range values.
func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = detectLocale()
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	if c.Geocoder.RequestsPerSec <= 0 {
		return fmt.Errorf("invalid geocoder request rate: %f", c.Geocoder.RequestsPerSec)
	}
	if c.Geocoder.CacheHitTTL <= 0 || c.Geocoder.CacheMissTTL <= 0 {
		return fmt.Errorf("geocoder cache TTLs must be positive")
	}
	if c.Picker.DefaultZoom < 1 || c.Picker.DefaultZoom > 21 {
		return fmt.Errorf("invalid default zoom: %f", c.Picker.DefaultZoom)
	}
	if c.Picker.UseInitialTarget {
		if c.Picker.InitialLat < -90 || c.Picker.InitialLat > 90 ||
			c.Picker.InitialLon < -180 || c.Picker.InitialLon > 180 {
			return fmt.Errorf("invalid initial target: (%f, %f)", c.Picker.InitialLat, c.Picker.InitialLon)
		}
	}
	if c.Intervals.Output <= 0 || c.Intervals.CacheSweep <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.Position.LocateTimeout <= 0 {
		return fmt.Errorf("invalid locate timeout: %s", c.Position.LocateTimeout)
	}

	return nil
}

// LanguageTag returns the configured locale as a language tag. Validate
// guarantees it parses.
func (c *Config) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

func detectLocale() string {
	tag, err := locale.Detect()
	if err != nil {
		return language.English.String()
	}
	return tag.String()
}
