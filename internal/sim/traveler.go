// Package sim moves a simulated traveler along an itinerary and serves the
// positions as a journey.LocationService.
package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tripnav/internal/geo"
	"tripnav/internal/journey"
	"tripnav/internal/logging"
)

// Detour pushes the traveler sideways by OffsetMeters while the distance
// travelled along the path is within [FromMeters, ToMeters).
type Detour struct {
	FromMeters   float64
	ToMeters     float64
	OffsetMeters float64
}

type Options struct {
	// Interval between fixes on the watch channel; 0 means one second.
	Interval        time.Duration
	SpeedMultiplier float64
	Detour          *Detour
	Logger          *slog.Logger
	Now             func() time.Time
}

// Traveler follows the legs of a route on their scheduled timing, scaled by
// the speed multiplier. Leg polylines are followed when present.
type Traveler struct {
	interval time.Duration
	speed    float64
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	pts    []geo.Point
	cum    []float64
	times  []float64 // seconds since start, one keyframe per leg boundary
	dists  []float64 // meters along pts at each keyframe
	start  time.Time
	detour *Detour
}

func NewTraveler(route journey.Route, opts Options) *Traveler {
	t := &Traveler{
		interval: opts.Interval,
		speed:    opts.SpeedMultiplier,
		logger:   logging.OrDefault(opts.Logger).With(slog.String("component", "sim")),
		now:      opts.Now,
	}
	if t.interval <= 0 {
		t.interval = time.Second
	}
	if t.speed <= 0 {
		t.speed = 1
	}
	if t.now == nil {
		t.now = time.Now
	}
	t.load(route, nil, t.now())
	t.detour = opts.Detour
	return t
}

// Load restarts the traveler at the first stop of route with the given
// detour, which may be nil.
func (t *Traveler) Load(route journey.Route, detour *Detour) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.load(route, nil, now)
	t.detour = detour
}

// Follow switches to a new itinerary starting now from the current position,
// as a traveler does after accepting a reroute. Any detour ends.
func (t *Traveler) Follow(route journey.Route) {
	now := t.now()
	here := t.Position(now)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.load(route, &here, now)
	t.detour = nil
	t.logger.Info("following new route", slog.String("route_id", route.ID), slog.Int("legs", len(route.Segments)))
}

// load must be called with mu held or before t is shared.
func (t *Traveler) load(route journey.Route, from *journey.Location, start time.Time) {
	var pts []geo.Point
	if from != nil {
		pts = append(pts, from.Point())
	}
	// vertex index at the end of every leg
	ends := make([]int, 0, len(route.Segments))
	for _, seg := range route.Segments {
		legPts := legPoints(seg)
		if len(pts) > 0 && len(legPts) > 0 && pts[len(pts)-1] == legPts[0] {
			legPts = legPts[1:]
		}
		pts = append(pts, legPts...)
		ends = append(ends, len(pts)-1)
	}
	cum := geo.CumulativeDistances(pts)

	times := []float64{0}
	dists := []float64{0}
	elapsed := 0.0
	for i, seg := range route.Segments {
		elapsed += seg.EstimatedTimeMinutes * 60
		d := 0.0
		if ends[i] >= 0 {
			d = cum[ends[i]]
		}
		if d < dists[len(dists)-1] {
			d = dists[len(dists)-1]
		}
		times = append(times, elapsed)
		dists = append(dists, d)
	}

	t.pts, t.cum, t.times, t.dists, t.start = pts, cum, times, dists, start
}

func legPoints(seg journey.Segment) []geo.Point {
	if seg.Polyline != "" {
		if pts, err := geo.DecodePolyline(seg.Polyline); err == nil && len(pts) >= 2 {
			return pts
		}
	}
	return []geo.Point{seg.From.Location().Point(), seg.To.Location().Point()}
}

// Position is where the traveler is at the given wall time.
func (t *Traveler) Position(at time.Time) journey.Location {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pts) == 0 {
		return journey.Location{Timestamp: at}
	}
	elapsed := at.Sub(t.start).Seconds() * t.speed
	dist := interpolateDistAtTime(t.times, t.dists, elapsed)
	p, bearing := geo.Interpolate(t.pts, t.cum, dist)
	if d := t.detour; d != nil && dist >= d.FromMeters && dist < d.ToMeters {
		p.Lat, p.Lon = geo.Offset(p.Lat, p.Lon, d.OffsetMeters, bearing+90)
	}
	return journey.Location{Latitude: p.Lat, Longitude: p.Lon, Timestamp: at, Confidence: 1}
}

// Arrived reports whether the schedule has run out at the given time.
func (t *Traveler) Arrived(at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return at.Sub(t.start).Seconds()*t.speed >= t.times[len(t.times)-1]
}

func (t *Traveler) CurrentLocation(ctx context.Context) (journey.Location, error) {
	if err := ctx.Err(); err != nil {
		return journey.Location{}, err
	}
	return t.Position(t.now()), nil
}

// WatchLocation emits a fix every interval until ctx is done.
func (t *Traveler) WatchLocation(ctx context.Context) (<-chan journey.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(chan journey.Location, 1)
	go func() {
		defer close(out)
		tick := time.NewTicker(t.interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
			select {
			case out <- t.Position(t.now()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SnapToNearestNode has no network to snap to.
func (t *Traveler) SnapToNearestNode(_ context.Context, loc journey.Location) (journey.Location, error) {
	return loc, nil
}

func interpolateDistAtTime(times, dists []float64, at float64) float64 {
	n := len(times)
	if n == 0 {
		return 0
	}
	if at <= times[0] {
		return dists[0]
	}
	if at >= times[n-1] {
		return dists[n-1]
	}
	// find segment i s.t. times[i] <= at < times[i+1]
	i := 0
	for i+1 < n && at > times[i+1] {
		i++
	}
	dt := times[i+1] - times[i]
	if dt <= 0 {
		return dists[i+1]
	}
	frac := (at - times[i]) / dt
	return dists[i] + (dists[i+1]-dists[i])*frac
}
