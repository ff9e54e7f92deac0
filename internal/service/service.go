// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package service wires the mappick components together and drives the pick
// session: it feeds camera events from the host into the controller, publishes
// the pick state as JSON lines and delivers the final selection.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/mattn/go-runewidth"

	"github.com/tversen/mappick/internal/config"
	"github.com/tversen/mappick/internal/geo"
	"github.com/tversen/mappick/internal/geocode"
	"github.com/tversen/mappick/internal/geocode/provider/nominatim"
	"github.com/tversen/mappick/internal/httpc"
	"github.com/tversen/mappick/internal/logger"
	"github.com/tversen/mappick/internal/picker"
	"github.com/tversen/mappick/internal/position"
	"github.com/tversen/mappick/internal/position/geoclue"
	"github.com/tversen/mappick/internal/position/provider/beacondb"
	"github.com/tversen/mappick/internal/position/provider/geoip"
	"github.com/tversen/mappick/internal/position/provider/gpsd"
)

// maxAddressWidth is the display width the address line is truncated to in the
// status output.
const maxAddressWidth = 60

// Output line types.
const (
	OutputStatus = "status"
	OutputCamera = "camera"
	OutputResult = "result"
	OutputError  = "error"
)

type outputData struct {
	Type       string   `json:"type"`
	Moving     bool     `json:"moving,omitempty"`
	Selectable bool     `json:"selectable,omitempty"`
	Latitude   *float64 `json:"lat,omitempty"`
	Longitude  *float64 `json:"lon,omitempty"`
	Zoom       *float64 `json:"zoom,omitempty"`
	Address    string   `json:"address,omitempty"`
	Country    string   `json:"country,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Service hosts a single location-pick session.
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	coder      geocode.Geocoder
	cache      *geocode.CachedGeocoder
	gate       *position.Gate
	controller *picker.Controller
	scheduler  gocron.Scheduler
	override   picker.OverrideFunc

	input io.Reader

	outputLock sync.Mutex
	output     io.Writer

	doneOnce sync.Once
	done     chan struct{}
	result   picker.Pick
}

// Option customizes a Service, mainly for testing.
type Option func(*Service)

// WithGeocoder replaces the default cached Nominatim geocoder.
func WithGeocoder(coder geocode.Geocoder) Option {
	return func(s *Service) { s.coder = coder }
}

// WithGate replaces the default GeoClue-gated positioning.
func WithGate(gate *position.Gate) Option {
	return func(s *Service) { s.gate = gate }
}

// WithInput sets the reader camera events are consumed from (default STDIN).
func WithInput(r io.Reader) Option {
	return func(s *Service) { s.input = r }
}

// WithOutput sets the writer pick state is published to (default STDOUT).
func WithOutput(w io.Writer) Option {
	return func(s *Service) { s.output = w }
}

// WithOverride configures the one-shot initial-position override provider.
func WithOverride(override picker.OverrideFunc) Option {
	return func(s *Service) { s.override = override }
}

// New assembles a Service from the given configuration.
func New(conf *config.Config, log *logger.Logger, opts ...Option) (*Service, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	service := &Service{
		config:    conf,
		logger:    log,
		scheduler: scheduler,
		input:     os.Stdin,
		output:    os.Stdout,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(service)
	}

	httpClient := httpc.New(log)
	if service.coder == nil {
		coder := nominatim.New(httpClient, conf.LanguageTag(),
			nominatim.WithEndpoint(conf.Geocoder.Endpoint),
			nominatim.WithEmail(conf.Geocoder.Email),
			nominatim.WithRate(conf.Geocoder.RequestsPerSec),
		)
		service.cache = geocode.NewCachedGeocoder(coder, conf.Geocoder.CacheHitTTL, conf.Geocoder.CacheMissTTL)
		service.coder = service.cache
	}
	if service.gate == nil {
		service.gate = position.NewGate(
			geoclue.New(conf.Position.DesktopID, log),
			service.createLocator(httpClient),
		)
	}

	pickerOpts := picker.Options{
		Override:      service.override,
		OnPickChanged: service.onPickChanged,
		OnResult:      service.onResult,
	}
	if conf.Picker.UseInitialTarget {
		pickerOpts.InitialTarget = &geo.Coordinate{
			Lat: conf.Picker.InitialLat,
			Lon: conf.Picker.InitialLon,
		}
	}
	service.controller = picker.New(log, service.coder, service, pickerOpts)

	return service, nil
}

// Run drives the session until a pick is selected or the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.createScheduledJob(ctx, s.config.Intervals.Output, s.printStatus,
		"pick_status_output_job"); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.createScheduledJob(ctx, s.config.Intervals.CacheSweep, s.sweepCache,
			"geocode_cache_sweep_job"); err != nil {
			return err
		}
	}
	s.scheduler.Start()

	go s.processEvents(ctx)

	select {
	case <-ctx.Done():
		s.closeEventFeed()
	case <-s.done:
		s.logger.Info("pick session finished",
			"lat", s.result.Coordinate.Lat, "lon", s.result.Coordinate.Lon)
	}
	return s.scheduler.Shutdown()
}

// closeEventFeed unblocks a pending scanner read so processEvents can exit. Feeds
// that are plain readers (e.g. a strings.Reader in tests) have nothing to close.
func (s *Service) closeEventFeed() {
	closer, ok := s.input.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		s.logger.Debug("failed to close event feed", logger.Err(err))
	}
}

// Result returns the selected pick once Run has finished.
func (s *Service) Result() (picker.Pick, bool) {
	select {
	case <-s.done:
		return s.result, true
	default:
		return picker.Pick{}, false
	}
}

// AnimateCamera satisfies the picker.Surface interface by publishing a camera
// command for the host to execute.
func (s *Service) AnimateCamera(_ context.Context, coord geo.Coordinate, zoom *float64) error {
	if zoom == nil {
		zoom = &s.config.Picker.DefaultZoom
	}
	return s.emit(outputData{
		Type:      OutputCamera,
		Latitude:  &coord.Lat,
		Longitude: &coord.Lon,
		Zoom:      zoom,
	})
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// printStatus publishes the current pick state.
func (s *Service) printStatus(context.Context) {
	status := outputData{
		Type:   OutputStatus,
		Moving: s.controller.IsMoving(),
	}
	if target, ok := s.controller.Target(); ok {
		status.Latitude = &target.Lat
		status.Longitude = &target.Lon
	}
	if pick := s.controller.CurrentPick(); pick != nil {
		status.Selectable = true
		status.Address = runewidth.Truncate(pick.Address(), maxAddressWidth, "…")
		status.Country = pick.Place.Country
	}
	if err := s.emit(status); err != nil {
		s.logger.Error("failed to publish pick status", logger.Err(err))
	}
}

// sweepCache evicts expired geocode cache entries.
func (s *Service) sweepCache(context.Context) {
	if removed := s.cache.Sweep(); removed > 0 {
		s.logger.Debug("swept geocode cache", "removed", removed)
	}
}

func (s *Service) onPickChanged(pick *picker.Pick) {
	if pick == nil {
		s.logger.Debug("pick cleared")
		return
	}
	s.logger.Debug("pick resolved", "lat", pick.Coordinate.Lat, "lon", pick.Coordinate.Lon,
		"address", pick.Address())
}

func (s *Service) onResult(pick picker.Pick) {
	if err := s.emit(outputData{
		Type:      OutputResult,
		Latitude:  &pick.Coordinate.Lat,
		Longitude: &pick.Coordinate.Lon,
		Address:   pick.Address(),
		Country:   pick.Place.Country,
	}); err != nil {
		s.logger.Error("failed to publish pick result", logger.Err(err))
	}
	s.doneOnce.Do(func() {
		s.result = pick
		close(s.done)
	})
}

func (s *Service) emit(data outputData) error {
	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if err := json.NewEncoder(s.output).Encode(data); err != nil {
		return fmt.Errorf("failed to encode output data: %w", err)
	}
	return nil
}

func (s *Service) createLocator(httpClient *httpc.Client) *position.Locator {
	var providers []position.Provider

	if !s.config.Position.DisableGPSD {
		providers = append(providers, gpsd.New(s.config.Position.GPSDHost, s.config.Position.GPSDPort))
	}

	if !s.config.Position.DisableBeaconDB {
		wlan, err := beacondb.New(httpClient)
		if err != nil {
			s.logger.Error("failed to create beacondb provider", logger.Err(err))
		} else {
			providers = append(providers, wlan)
		}
	}

	if !s.config.Position.DisableGeoIP {
		providers = append(providers, geoip.New(httpClient))
	}

	return position.NewLocator(s.logger, providers...)
}
