package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/example/furniture-market/internal/geo"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL keeps resolved cities for a month; city coordinates do not move.
const DefaultCacheTTL = 30 * 24 * time.Hour

// sharedLookupTimeout bounds a collapsed lookup, which outlives the caller
// that started it.
const sharedLookupTimeout = 15 * time.Second

// Lookup is anything that can geocode a city.
type Lookup interface {
	Geocode(ctx context.Context, city string) (geo.Coordinates, bool)
}

// CachedGeocoder stores positive lookups in Redis and collapses concurrent
// lookups of the same city into one upstream call. Misses are not cached so
// a transient upstream failure is retried on the next request.
type CachedGeocoder struct {
	next   Lookup
	client *redis.Client
	ttl    time.Duration
	sfg    singleflight.Group
}

type lookupResult struct {
	coords geo.Coordinates
	found  bool
}

func NewCachedGeocoder(next Lookup, client *redis.Client, ttl time.Duration) *CachedGeocoder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedGeocoder{next: next, client: client, ttl: ttl}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, city string) (geo.Coordinates, bool) {
	key := cacheKey(city)
	if key == "" {
		return geo.Coordinates{}, false
	}

	// The shared lookup must not die with whichever caller started it.
	ch := g.sfg.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()

		if coords, ok := g.get(lookupCtx, key); ok {
			return lookupResult{coords: coords, found: true}, nil
		}
		coords, found := g.next.Geocode(lookupCtx, city)
		if found {
			g.set(lookupCtx, key, coords)
		}
		return lookupResult{coords: coords, found: found}, nil
	})

	select {
	case <-ctx.Done():
		return geo.Coordinates{}, false
	case r := <-ch:
		res := r.Val.(lookupResult)
		return res.coords, res.found
	}
}

func (g *CachedGeocoder) get(ctx context.Context, key string) (geo.Coordinates, bool) {
	data, err := g.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return geo.Coordinates{}, false
	}
	if err != nil {
		log.Printf("[Geocode] Cache get %s failed: %v", key, err)
		return geo.Coordinates{}, false
	}
	var coords geo.Coordinates
	if err := json.Unmarshal(data, &coords); err != nil {
		log.Printf("[Geocode] Cache entry %s is corrupt: %v", key, err)
		return geo.Coordinates{}, false
	}
	return coords, true
}

func (g *CachedGeocoder) set(ctx context.Context, key string, coords geo.Coordinates) {
	data, err := json.Marshal(coords)
	if err != nil {
		return
	}
	if err := g.client.Set(ctx, key, data, g.ttl).Err(); err != nil {
		log.Printf("[Geocode] Cache set %s failed: %v", key, err)
	}
}

func cacheKey(city string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(city)), " ")
	if normalized == "" {
		return ""
	}
	return "geo:" + normalized
}
