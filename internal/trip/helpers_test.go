package trip

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tripnav/internal/geo"
	"tripnav/internal/journey"
	"tripnav/internal/logging"
)

var (
	t0     = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	origin = journey.Location{Latitude: 6.5000, Longitude: 3.3500}
)

func north(from journey.Location, meters float64) journey.Location {
	lat, lon := geo.Offset(from.Latitude, from.Longitude, meters, 0)
	return journey.Location{Latitude: lat, Longitude: lon}
}

func east(from journey.Location, meters float64) journey.Location {
	lat, lon := geo.Offset(from.Latitude, from.Longitude, meters, 90)
	return journey.Location{Latitude: lat, Longitude: lon}
}

// corridor is a 3 km walk-bus-walk itinerary heading north from origin.
func corridor() journey.Route {
	o := journey.PointStop("Origin", origin)
	s1 := journey.Stop{ID: "s1", Name: "Ojuelegba", Latitude: north(origin, 200).Latitude, Longitude: origin.Longitude}
	s2 := journey.Stop{ID: "s2", Name: "Yaba", Latitude: north(origin, 2800).Latitude, Longitude: origin.Longitude}
	d := journey.PointStop("Destination", north(origin, 3000))
	walk := journey.TransportMode{Type: journey.ModeWalk, Name: "Walking", AvailabilityFactor: 1, AvgSpeedKmh: 5.04}
	bus := journey.TransportMode{Type: journey.ModeBus, Name: "Bus", AvailabilityFactor: 0.9, BaseRate: 100, PerKmRate: 30, AvgSpeedKmh: 25}
	segs := []journey.Segment{
		{ID: "leg-0", From: o, To: s1, DistanceMeters: 200, EstimatedTimeMinutes: 2, Mode: walk},
		{ID: "leg-1", From: s1, To: s2, DistanceMeters: 2600, EstimatedTimeMinutes: 6, Mode: bus, Cost: 178},
		{ID: "leg-2", From: s2, To: d, DistanceMeters: 200, EstimatedTimeMinutes: 2, Mode: walk},
	}
	return journey.Route{ID: "r1", Segments: segs, TotalDistance: 3000, TotalTime: 10, TotalCost: 178, Strategy: journey.StrategyBalanced}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []journey.Event
}

func (r *recorder) Emit(ev journey.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Actions(typ journey.EventType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev.Action)
		}
	}
	return out
}

func (r *recorder) Last(typ journey.EventType) (journey.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return journey.Event{}, false
}

type fakeNotifier struct {
	mu         sync.Mutex
	milestones []string
	vibrations int
	completed  int
	err        error
}

func (f *fakeNotifier) SendMilestoneNotification(_ context.Context, _ journey.TripState, m journey.Milestone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.milestones = append(f.milestones, m.StopName)
	return f.err
}

func (f *fakeNotifier) SendRerouteNotification(context.Context, journey.TripState, string) error {
	return f.err
}

func (f *fakeNotifier) SendTripCompletedNotification(context.Context, journey.TripState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed++
	return f.err
}

func (f *fakeNotifier) TriggerVibration(context.Context, []time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vibrations++
	return f.err
}

func (f *fakeNotifier) ShowInAppAlert(context.Context, string, string) error { return f.err }

func (f *fakeNotifier) Completed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// fakeLocations serves a fixed position and an optional watch feed.
type fakeLocations struct {
	mu      sync.Mutex
	current journey.Location
	feed    chan journey.Location
	err     error
}

func (f *fakeLocations) CurrentLocation(context.Context) (journey.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return journey.Location{}, f.err
	}
	return f.current, nil
}

func (f *fakeLocations) Set(loc journey.Location) {
	f.mu.Lock()
	f.current = loc
	f.err = nil
	f.mu.Unlock()
}

func (f *fakeLocations) WatchLocation(context.Context) (<-chan journey.Location, error) {
	if f.feed == nil {
		return nil, errors.New("watch not supported")
	}
	return f.feed, nil
}

func (f *fakeLocations) SnapToNearestNode(_ context.Context, loc journey.Location) (journey.Location, error) {
	return loc, nil
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewStructuredLogger(&syncWriter{w: &buf}, slog.LevelDebug), &buf
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type harness struct {
	clock     *clock
	events    *recorder
	notifier  *fakeNotifier
	locations *fakeLocations
	lifecycle *Lifecycle
	engine    *Engine
	arrivals  atomic.Int32
	logs      *bytes.Buffer
}

func newHarness() *harness {
	h := &harness{
		clock:     newClock(),
		events:    &recorder{},
		notifier:  &fakeNotifier{},
		locations: &fakeLocations{err: errors.New("no fix")},
	}
	logger, buf := bufferLogger()
	h.logs = buf
	h.lifecycle = NewLifecycle(logger, nil, h.events.Emit, h.clock.Now)
	settings := journey.DefaultSettings()
	settings.LocationUpdateInterval = 10 * time.Millisecond
	h.engine = NewEngine(Options{
		Lifecycle: h.lifecycle,
		Locations: h.locations,
		Notifier:  h.notifier,
		Settings:  settings,
		Logger:    logger,
		Emit:      h.events.Emit,
		OnArrival: func() { h.arrivals.Add(1) },
		Now:       h.clock.Now,
	})
	return h
}
