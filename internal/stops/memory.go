// Package stops provides stop repositories backed by memory or a GTFS feed.
package stops

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"tripnav/internal/geo"
	"tripnav/internal/journey"
)

var validate = validator.New()

// Memory is an in-process journey.StopRepository. Iteration order is
// insertion order.
type Memory struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]journey.Stop
}

func NewMemory(stops ...journey.Stop) *Memory {
	m := &Memory{byID: make(map[string]journey.Stop, len(stops))}
	for _, s := range stops {
		if _, ok := m.byID[s.ID]; !ok {
			m.order = append(m.order, s.ID)
		}
		m.byID[s.ID] = s
	}
	return m
}

// FindNearby returns stops within radiusMeters of loc, closest first. A
// bounding box prefilter keeps the haversine pass small.
func (m *Memory) FindNearby(ctx context.Context, loc journey.Location, radiusMeters float64) ([]journey.Stop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	minLat, maxLat, minLon, maxLon := BoundingBox(loc, radiusMeters)

	m.mu.RLock()
	defer m.mu.RUnlock()
	type hit struct {
		stop journey.Stop
		dist float64
	}
	var hits []hit
	for _, id := range m.order {
		s := m.byID[id]
		if s.Latitude < minLat || s.Latitude > maxLat || s.Longitude < minLon || s.Longitude > maxLon {
			continue
		}
		if d := loc.DistanceTo(s.Location()); d <= radiusMeters {
			hits = append(hits, hit{s, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	out := make([]journey.Stop, len(hits))
	for i, h := range hits {
		out[i] = h.stop
	}
	return out, nil
}

func (m *Memory) FindAll(ctx context.Context) ([]journey.Stop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]journey.Stop, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (journey.Stop, error) {
	if err := ctx.Err(); err != nil {
		return journey.Stop{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return journey.Stop{}, fmt.Errorf("stop %q: %w", id, journey.ErrStopNotFound)
	}
	return s, nil
}

// FindByArea matches the area case-insensitively.
func (m *Memory) FindByArea(ctx context.Context, area string) ([]journey.Stop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []journey.Stop
	for _, id := range m.order {
		if s := m.byID[id]; strings.EqualFold(s.Area, area) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Save inserts or replaces s.
func (m *Memory) Save(ctx context.Context, s journey.Stop) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid stop: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.byID[s.ID] = s
	return nil
}

// Update replaces an existing stop.
func (m *Memory) Update(ctx context.Context, s journey.Stop) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid stop: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID]; !ok {
		return fmt.Errorf("stop %q: %w", s.ID, journey.ErrStopNotFound)
	}
	m.byID[s.ID] = s
	return nil
}

// BoundingBox returns the lat/lon box enclosing a circle of radiusMeters.
func BoundingBox(loc journey.Location, radiusMeters float64) (minLat, maxLat, minLon, maxLon float64) {
	dLat := radiusMeters / geo.EarthRadiusMeters * 180 / math.Pi
	cos := math.Cos(loc.Latitude * math.Pi / 180)
	dLon := 180.0
	if cos > 1e-9 {
		dLon = math.Min(180, dLat/cos)
	}
	return loc.Latitude - dLat, loc.Latitude + dLat, loc.Longitude - dLon, loc.Longitude + dLon
}
