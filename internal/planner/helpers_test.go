package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"tripnav/internal/fare"
	"tripnav/internal/geo"
	"tripnav/internal/journey"
)

// Origin and destination used across the tests sit on the same meridian in
// mainland Lagos.
var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

var lagosOrigin = journey.Location{Latitude: 6.5000, Longitude: 3.3500}

func north(from journey.Location, meters float64) journey.Location {
	lat, lon := geo.Offset(from.Latitude, from.Longitude, meters, 0)
	return journey.Location{Latitude: lat, Longitude: lon}
}

func east(from journey.Location, meters float64) journey.Location {
	lat, lon := geo.Offset(from.Latitude, from.Longitude, meters, 90)
	return journey.Location{Latitude: lat, Longitude: lon}
}

func stopAt(id string, loc journey.Location) journey.Stop {
	return journey.Stop{ID: id, Name: "Stop " + id, Latitude: loc.Latitude, Longitude: loc.Longitude}
}

type fakeStops struct {
	mu    sync.Mutex
	stops []journey.Stop
	err   error
	calls int
}

func (f *fakeStops) FindNearby(_ context.Context, loc journey.Location, radius float64) ([]journey.Stop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []journey.Stop
	for _, s := range f.stops {
		if loc.DistanceTo(s.Location()) <= radius {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStops) FindAll(context.Context) ([]journey.Stop, error) { return f.stops, nil }

func (f *fakeStops) FindByID(_ context.Context, id string) (journey.Stop, error) {
	for _, s := range f.stops {
		if s.ID == id {
			return s, nil
		}
	}
	return journey.Stop{}, journey.ErrStopNotFound
}

func (f *fakeStops) FindByArea(context.Context, string) ([]journey.Stop, error) { return nil, nil }
func (f *fakeStops) Save(context.Context, journey.Stop) error                   { return nil }
func (f *fakeStops) Update(context.Context, journey.Stop) error                 { return nil }

type failingRouting struct{}

func (failingRouting) CalculateRoute(context.Context, journey.Location, journey.Location, journey.ModeType) (journey.RouteResult, error) {
	return journey.RouteResult{}, errors.New("routing backend down")
}

func (failingRouting) CalculateMultiStopRoute(context.Context, []journey.Location, journey.ModeType) (journey.RouteResult, error) {
	return journey.RouteResult{}, errors.New("routing backend down")
}

type fixedSnapper struct {
	to journey.Location
}

func (s fixedSnapper) CurrentLocation(context.Context) (journey.Location, error) { return s.to, nil }
func (s fixedSnapper) WatchLocation(context.Context) (<-chan journey.Location, error) {
	return nil, errors.New("not supported")
}
func (s fixedSnapper) SnapToNearestNode(context.Context, journey.Location) (journey.Location, error) {
	return s.to, nil
}

func newTestFactory(catalog journey.Catalog) *SegmentFactory {
	return NewSegmentFactory(catalog, nil, fare.New(), nil)
}

func newTestEngine(stops journey.StopRepository) *Engine {
	return NewEngine(Options{
		Stops:    stops,
		Factory:  newTestFactory(journey.DefaultCatalog()),
		Cache:    NewRouteCache(16, 0),
		Settings: journey.DefaultSettings(),
	})
}
