// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tversen/mappick/internal/geo"
)

const (
	testHitTTL  = 200 * time.Millisecond
	testMissTTL = 50 * time.Millisecond
)

var (
	testCoord  = geo.Coordinate{Lat: 52.5129, Lon: 13.3910}
	emptyCoord = geo.Coordinate{Lat: 0, Lon: 0}
	errorCoord = geo.Coordinate{Lat: 1, Lon: -1}
)

type mockCoder struct {
	calls atomic.Int64
}

func (c *mockCoder) Name() string { return "mock" }

func (c *mockCoder) Reverse(_ context.Context, coord geo.Coordinate) (Place, error) {
	c.calls.Add(1)
	if coord == errorCoord {
		return Place{}, errors.New("lookup intentionally failed")
	}
	if coord == emptyCoord {
		return Place{}, nil
	}
	return Place{
		Found:       true,
		Street:      "Friedrichstraße",
		SubLocality: "Mitte",
		Locality:    "Berlin",
		Country:     "Germany",
	}, nil
}

func TestNewCachedGeocoder(t *testing.T) {
	t.Run("a new geocoder should be returned", func(t *testing.T) {
		coder := NewCachedGeocoder(&mockCoder{}, testHitTTL, testMissTTL)
		if coder == nil {
			t.Fatal("expected a non-nil geocoder")
		}
		if coder.Name() != "geocoder cache using mock" {
			t.Errorf("expected geocoder name to be 'geocoder cache using mock', got %q", coder.Name())
		}
	})
}

func TestCachedGeocoder_Reverse(t *testing.T) {
	t.Run("second lookup of the same coordinate is a cache hit", func(t *testing.T) {
		mock := &mockCoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, testMissTTL)

		place, err := coder.Reverse(t.Context(), testCoord)
		if err != nil {
			t.Fatal(err)
		}
		if !place.Found {
			t.Fatal("expected place to be found")
		}
		if place.CacheHit {
			t.Fatal("expected first lookup to be a cache miss")
		}

		place, err = coder.Reverse(t.Context(), testCoord)
		if err != nil {
			t.Fatal(err)
		}
		if !place.CacheHit {
			t.Fatal("expected second lookup to be a cache hit")
		}
		if got := mock.calls.Load(); got != 1 {
			t.Errorf("expected 1 provider call, got %d", got)
		}
	})
	t.Run("nearby coordinates share a cache entry", func(t *testing.T) {
		mock := &mockCoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, testMissTTL)

		if _, err := coder.Reverse(t.Context(), testCoord); err != nil {
			t.Fatal(err)
		}
		nearby := geo.Coordinate{Lat: testCoord.Lat + 1e-5, Lon: testCoord.Lon - 1e-5}
		place, err := coder.Reverse(t.Context(), nearby)
		if err != nil {
			t.Fatal(err)
		}
		if !place.CacheHit {
			t.Error("expected nearby coordinate to hit the cache")
		}
	})
	t.Run("empty results are cached too", func(t *testing.T) {
		mock := &mockCoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, testMissTTL)

		place, err := coder.Reverse(t.Context(), emptyCoord)
		if err != nil {
			t.Fatal(err)
		}
		if place.Found {
			t.Fatal("expected place not to be found")
		}
		place, err = coder.Reverse(t.Context(), emptyCoord)
		if err != nil {
			t.Fatal(err)
		}
		if !place.CacheHit {
			t.Error("expected cached empty result")
		}
	})
	t.Run("provider errors are not cached", func(t *testing.T) {
		mock := &mockCoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, testMissTTL)

		if _, err := coder.Reverse(t.Context(), errorCoord); err == nil {
			t.Fatal("expected lookup to fail")
		}
		if _, err := coder.Reverse(t.Context(), errorCoord); err == nil {
			t.Fatal("expected repeated lookup to fail")
		}
		if got := mock.calls.Load(); got != 2 {
			t.Errorf("expected 2 provider calls, got %d", got)
		}
	})
	t.Run("expired entries are looked up again", func(t *testing.T) {
		mock := &mockCoder{}
		coder := NewCachedGeocoder(mock, 10*time.Millisecond, 10*time.Millisecond)

		if _, err := coder.Reverse(t.Context(), testCoord); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
		place, err := coder.Reverse(t.Context(), testCoord)
		if err != nil {
			t.Fatal(err)
		}
		if place.CacheHit {
			t.Error("expected expired entry to miss")
		}
	})
}

func TestCachedGeocoder_Sweep(t *testing.T) {
	t.Run("expired entries are removed, fresh entries survive", func(t *testing.T) {
		mock := &mockCoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, 10*time.Millisecond)

		if _, err := coder.Reverse(t.Context(), testCoord); err != nil {
			t.Fatal(err)
		}
		if _, err := coder.Reverse(t.Context(), emptyCoord); err != nil {
			t.Fatal(err)
		}
		if coder.Len() != 2 {
			t.Fatalf("expected 2 cached entries, got %d", coder.Len())
		}

		time.Sleep(20 * time.Millisecond)
		if removed := coder.Sweep(); removed != 1 {
			t.Errorf("expected 1 swept entry, got %d", removed)
		}
		if coder.Len() != 1 {
			t.Errorf("expected 1 remaining entry, got %d", coder.Len())
		}
	})
}
