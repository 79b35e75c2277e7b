package trip

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tripnav/internal/journey"
	"tripnav/internal/logging"
	"tripnav/internal/metrics"
)

// ErrEmptyRoute is returned when a trip is started on an itinerary with no legs.
var ErrEmptyRoute = errors.New("route has no segments")

// Milestone vibration pattern.
var reachedPattern = []time.Duration{200 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

type Options struct {
	Lifecycle *Lifecycle
	Locations journey.LocationService
	Notifier  journey.Notifier
	Settings  journey.Settings
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Emit      journey.EmitFunc
	// OnArrival runs on the tracking goroutine right before an arrival
	// completes the trip. It must not wait for the tracking loop.
	OnArrival func()
	Now       func() time.Time
}

// Engine binds location updates to milestone tracking and arrival detection.
type Engine struct {
	lifecycle *Lifecycle
	locations journey.LocationService
	notifier  journey.Notifier
	settings  journey.Settings
	tracker   Tracker
	logger    *slog.Logger
	metrics   *metrics.Collector
	emit      journey.EmitFunc
	onArrival func()
	now       func() time.Time
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		lifecycle: opts.Lifecycle,
		locations: opts.Locations,
		notifier:  opts.Notifier,
		settings:  opts.Settings,
		tracker:   Tracker{ProximityMeters: opts.Settings.MilestoneProximityMeters},
		logger:    logging.OrDefault(opts.Logger).With(slog.String("component", "trip")),
		metrics:   opts.Metrics,
		emit:      opts.Emit,
		onArrival: opts.OnArrival,
		now:       opts.Now,
	}
	if e.emit == nil {
		e.emit = func(journey.Event) {}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Start resolves the traveler's position, picks the starting leg and opens a
// new trip on the lifecycle. current may be nil, in which case the location
// service is asked; if that fails the first leg's origin is assumed.
// Tracking is started separately with Track.
func (e *Engine) Start(ctx context.Context, userID string, route journey.Route, destination journey.Location, current *journey.Location) (journey.TripState, error) {
	if len(route.Segments) == 0 {
		return journey.TripState{}, ErrEmptyRoute
	}
	loc := e.resolveLocation(ctx, route, current)
	if err := ctx.Err(); err != nil {
		return journey.TripState{}, err
	}

	startIndex := NearestStartLeg(route, loc, e.settings.NearbyStopRadiusMeters)
	milestones := BuildMilestones(route, startIndex, e.now())
	return e.lifecycle.Start(userID, route, loc, destination, startIndex, milestones), nil
}

func (e *Engine) resolveLocation(ctx context.Context, route journey.Route, current *journey.Location) journey.Location {
	if current != nil {
		return *current
	}
	if e.locations != nil {
		loc, err := e.locations.CurrentLocation(ctx)
		if err == nil {
			return loc
		}
		e.logger.Warn("current location unavailable, assuming first stop", slog.String("error", err.Error()))
	}
	return route.Segments[0].From.Location()
}

// HandleLocation applies one position update. Arrival within the arrival
// radius of the destination wins over milestone evaluation and completes the
// trip. Updates for a trip that is not in progress are ignored.
func (e *Engine) HandleLocation(ctx context.Context, loc journey.Location) {
	if ctx.Err() != nil {
		return
	}
	now := e.now()
	var (
		hits    []MilestoneHit
		arrived bool
	)
	st, ok := e.lifecycle.Update(func(s *journey.TripState) bool {
		if s.Status != journey.StatusInProgress {
			return false
		}
		s.CurrentLocation = loc
		if loc.DistanceTo(s.DestinationLocation) <= e.settings.ArrivalRadiusMeters {
			arrived = true
			return true
		}
		hits = e.tracker.Evaluate(s, loc, now)
		return true
	})
	if !ok {
		return
	}
	if e.metrics != nil {
		e.metrics.LocationUpdates.Inc()
	}

	if arrived {
		e.arrive(ctx, st)
		return
	}
	for _, h := range hits {
		e.milestone(ctx, st, h)
	}
}

func (e *Engine) arrive(ctx context.Context, st journey.TripState) {
	e.logger.Info("destination reached",
		slog.String("trip_id", st.TripID),
		slog.Float64("distance_m", st.CurrentLocation.DistanceTo(st.DestinationLocation)))
	if e.onArrival != nil {
		e.onArrival()
	}
	final, ok := e.lifecycle.Complete()
	if !ok {
		return
	}
	// onArrival cancels the tracking context.
	ctx = context.WithoutCancel(ctx)
	e.notify("trip completed", func() error {
		return e.notifier.SendTripCompletedNotification(ctx, final)
	})
}

func (e *Engine) milestone(ctx context.Context, st journey.TripState, h MilestoneHit) {
	m := h.Milestone
	snap := st.Clone()
	ev := journey.Event{
		Type:           journey.EventMilestone,
		Action:         h.Action,
		TripID:         st.TripID,
		UserID:         st.UserID,
		Timestamp:      e.now(),
		State:          &snap,
		Milestone:      &m,
		DistanceMeters: h.Distance,
	}
	if h.Action != journey.ActionReached {
		e.emit(ev)
		return
	}

	p := ComputeProgress(st)
	ev.RemainingDistance = p.RemainingDistance
	ev.RemainingTime = p.RemainingTime
	e.emit(ev)

	if e.metrics != nil {
		e.metrics.MilestonesReached.Inc()
	}
	e.logger.Info("milestone reached",
		slog.String("trip_id", st.TripID),
		slog.String("stop", m.StopName),
		slog.String("type", string(m.Type)),
		slog.Int("segment_index", st.CurrentSegmentIndex))
	e.notify("vibration", func() error { return e.notifier.TriggerVibration(ctx, reachedPattern) })
	e.notify("milestone", func() error { return e.notifier.SendMilestoneNotification(ctx, st, m) })
}

// notify runs a fire-and-forget notifier call; failures are only logged.
func (e *Engine) notify(kind string, fn func() error) {
	if e.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		e.logger.Debug("notification failed", slog.String("kind", kind), slog.String("error", err.Error()))
	}
}
