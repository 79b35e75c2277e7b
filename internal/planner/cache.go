package planner

import (
	"fmt"
	"time"

	"github.com/bluele/gcache"

	"tripnav/internal/journey"
)

// RouteCache keeps the top itineraries per endpoint pair for offline reuse.
// A nil *RouteCache is a valid, always-empty cache.
type RouteCache struct {
	c gcache.Cache
}

// NewRouteCache returns nil when size is not positive.
func NewRouteCache(size int, ttl time.Duration) *RouteCache {
	if size <= 0 {
		return nil
	}
	b := gcache.New(size).LRU()
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &RouteCache{c: b.Build()}
}

// cacheKey rounds to four decimals, about 11 m.
func cacheKey(origin, destination journey.Location) string {
	return fmt.Sprintf("%.4f,%.4f|%.4f,%.4f", origin.Latitude, origin.Longitude, destination.Latitude, destination.Longitude)
}

func (rc *RouteCache) Put(origin, destination journey.Location, routes []journey.Route) error {
	if rc == nil {
		return nil
	}
	cp := make([]journey.Route, len(routes))
	for i, r := range routes {
		cp[i] = r.Clone()
	}
	return rc.c.Set(cacheKey(origin, destination), cp)
}

func (rc *RouteCache) Get(origin, destination journey.Location) ([]journey.Route, bool) {
	if rc == nil {
		return nil, false
	}
	v, err := rc.c.Get(cacheKey(origin, destination))
	if err != nil {
		return nil, false
	}
	routes, ok := v.([]journey.Route)
	if !ok || len(routes) == 0 {
		return nil, false
	}
	out := make([]journey.Route, len(routes))
	for i, r := range routes {
		out[i] = r.Clone()
	}
	return out, true
}
