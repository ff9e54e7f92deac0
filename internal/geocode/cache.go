// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tversen/mappick/internal/geo"
)

// coordPrecision is the precision used to quantize coordinates (0.001 degrees ≈ 110 m).
// Camera settles within this radius hit the same cache entry, which keeps repeated
// small pan gestures from hammering the provider.
const coordPrecision = 1e-3

type cacheKey struct {
	LatQ int32
	LonQ int32
}

type cacheEntry struct {
	Place  Place
	Expiry time.Time
}

// CachedGeocoder wraps a Geocoder with an in-memory TTL cache keyed on quantized
// coordinates. Hits and misses are cached with separate TTLs; provider failures are
// never cached.
type CachedGeocoder struct {
	coder   Geocoder
	ttlHit  time.Duration
	ttlMiss time.Duration

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
}

// NewCachedGeocoder wraps coder with a TTL cache using the given hit and miss TTLs.
func NewCachedGeocoder(coder Geocoder, ttlHit, ttlMiss time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		coder:   coder,
		ttlHit:  ttlHit,
		ttlMiss: ttlMiss,
		cache:   make(map[cacheKey]cacheEntry),
	}
}

func (c *CachedGeocoder) Name() string {
	return "geocoder cache using " + c.coder.Name()
}

// Reverse satisfies the Geocoder interface. Cached results are marked with
// Place.CacheHit.
func (c *CachedGeocoder) Reverse(ctx context.Context, coord geo.Coordinate) (Place, error) {
	key := newKey(coord.Lat, coord.Lon)

	c.mu.RLock()
	entry, ok := c.cache[key]
	if ok && time.Now().Before(entry.Expiry) {
		place := entry.Place
		c.mu.RUnlock()
		place.CacheHit = true
		return place, nil
	}
	c.mu.RUnlock()

	place, err := c.coder.Reverse(ctx, coord)
	if err != nil {
		return place, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.ttlHit
	if !place.Found {
		ttl = c.ttlMiss
	}
	c.cache[key] = cacheEntry{
		Place:  place,
		Expiry: time.Now().Add(ttl),
	}

	return place, nil
}

// Sweep drops all expired entries and returns the number of entries removed. It is
// meant to be run periodically by the service scheduler.
func (c *CachedGeocoder) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.cache {
		if now.After(entry.Expiry) {
			delete(c.cache, key)
			removed++
		}
	}
	return removed
}

// Len returns the current number of cached entries.
func (c *CachedGeocoder) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func quantizeCoord(val float64) int32 {
	return int32(math.Round(val / coordPrecision))
}

func newKey(lat, lon float64) cacheKey {
	return cacheKey{
		LatQ: quantizeCoord(lat),
		LonQ: quantizeCoord(lon),
	}
}
