// Package orchestrator composes planning, trip execution, deviation checks
// and rerouting behind one API with a single merged event feed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tripnav/internal/deviation"
	"tripnav/internal/fare"
	"tripnav/internal/journey"
	"tripnav/internal/logging"
	"tripnav/internal/metrics"
	"tripnav/internal/planner"
	"tripnav/internal/reroute"
	"tripnav/internal/trip"
)

var (
	ErrTripActive   = errors.New("a trip is already active")
	ErrNoActiveTrip = errors.New("no active trip")
)

const defaultEventBuffer = 64

// EventPublisher forwards feed events outside the process.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev journey.Event) error
}

// Options wires an Orchestrator. Only Stops is required; Settings defaults
// to journey.DefaultSettings when left zero.
type Options struct {
	Stops     journey.StopRepository
	Locations journey.LocationService
	Routing   journey.RoutingService
	Fares     journey.FareCalculator
	Notifier  journey.Notifier
	Catalog   journey.Catalog
	Settings  journey.Settings
	Publisher EventPublisher
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	// EventBuffer sizes the Events channel; events are dropped when it is full.
	EventBuffer int
	Now         func() time.Time
}

type Orchestrator struct {
	mu sync.Mutex // serializes trip operations

	planner   *planner.Engine
	lifecycle *trip.Lifecycle
	trips     *trip.Engine
	checker   *deviation.Checker
	rerouter  *reroute.Engine
	loops     trip.Loops

	notifier  journey.Notifier
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	ctx  context.Context
	stop context.CancelFunc

	feedMu sync.RWMutex
	events chan journey.Event
	subs   map[int]func(journey.Event)
	nextID int
	closed bool
}

func New(opts Options) (*Orchestrator, error) {
	settings := opts.Settings
	if settings == (journey.Settings{}) {
		settings = journey.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	catalog := opts.Catalog
	if len(catalog) == 0 {
		catalog = journey.DefaultCatalog()
	}
	fares := opts.Fares
	if fares == nil {
		fares = fare.New()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	logger := logging.OrDefault(opts.Logger)

	ctx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		notifier:  opts.Notifier,
		publisher: opts.Publisher,
		logger:    logger.With(slog.String("component", "orchestrator")),
		now:       now,
		ctx:       ctx,
		stop:      stop,
		events:    make(chan journey.Event, buffer),
		subs:      make(map[int]func(journey.Event)),
	}

	o.planner = planner.NewEngine(planner.Options{
		Stops:     opts.Stops,
		Locations: opts.Locations,
		Factory:   planner.NewSegmentFactory(catalog, opts.Routing, fares, logger),
		Cache:     planner.NewRouteCache(settings.RouteCacheSize, settings.RouteCacheTTL),
		Settings:  settings,
		Logger:    logger,
		Metrics:   opts.Metrics,
	})
	o.lifecycle = trip.NewLifecycle(logger, opts.Metrics, o.emit, now)
	o.checker = deviation.NewChecker(settings, logger, opts.Metrics, now)
	o.rerouter = reroute.New(reroute.Options{
		Lifecycle: o.lifecycle,
		Planner:   o.planner,
		Checker:   o.checker,
		Notifier:  opts.Notifier,
		Settings:  settings,
		Logger:    logger,
		Metrics:   opts.Metrics,
		Emit:      o.emit,
		Now:       now,
	})
	o.trips = trip.NewEngine(trip.Options{
		Lifecycle: o.lifecycle,
		Locations: opts.Locations,
		Notifier:  opts.Notifier,
		Settings:  settings,
		Logger:    logger,
		Metrics:   opts.Metrics,
		Emit:      o.emit,
		OnArrival: o.halt,
		Now:       now,
	})
	return o, nil
}

// PlanTrip returns ranked itineraries between origin and destination.
func (o *Orchestrator) PlanTrip(ctx context.Context, origin, destination journey.Location, maxAlternatives int) (planner.Plan, error) {
	return o.planner.GenerateRoutes(ctx, origin, destination, maxAlternatives)
}

// StartTrip begins executing route and starts location tracking and
// deviation checks. Only one trip may be active.
func (o *Orchestrator) StartTrip(ctx context.Context, userID string, route journey.Route, destination journey.Location, current *journey.Location) (journey.TripState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isClosed() {
		return journey.TripState{}, errors.New("orchestrator closed")
	}
	if o.lifecycle.Active() {
		logging.LogRejected(o.logger, "start_trip", "a trip is already active")
		return journey.TripState{}, ErrTripActive
	}
	st, err := o.trips.Start(ctx, userID, route, destination, current)
	if err != nil {
		return journey.TripState{}, err
	}
	o.rerouter.Reset()
	o.checker.Reset()
	o.startLoops()
	return st, nil
}

func (o *Orchestrator) startLoops() {
	o.loops.StartLoops(o.ctx,
		o.trips.Track,
		func(ctx context.Context) {
			o.checker.Run(ctx, o.lifecycle.Snapshot, o.rerouter.Handle)
		},
	)
}

// halt runs on the tracking goroutine when the traveler arrives.
func (o *Orchestrator) halt() {
	o.loops.Cancel()
	o.rerouter.Reset()
	o.checker.Reset()
}

// PauseTrip pauses the active trip and stops both loops. It reports false,
// with a warning, when no trip is in progress.
func (o *Orchestrator) PauseTrip() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.lifecycle.Pause(); !ok {
		return false
	}
	o.loops.Stop()
	return true
}

// ResumeTrip resumes a paused trip and restarts both loops together.
func (o *Orchestrator) ResumeTrip() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.lifecycle.Resume(); !ok {
		return false
	}
	o.startLoops()
	return true
}

// CompleteTrip stops the loops, then completes and clears the active trip.
func (o *Orchestrator) CompleteTrip(ctx context.Context) (journey.TripState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.lifecycle.Active() {
		logging.LogRejected(o.logger, "complete_trip", "no active trip")
		return journey.TripState{}, ErrNoActiveTrip
	}
	o.loops.Stop()
	final, ok := o.lifecycle.Complete()
	if !ok {
		return journey.TripState{}, ErrNoActiveTrip
	}
	o.rerouter.Reset()
	o.checker.Reset()
	if o.notifier != nil {
		if err := o.notifier.SendTripCompletedNotification(ctx, final); err != nil {
			o.logger.Debug("completion notification failed", slog.String("error", err.Error()))
		}
	}
	return final, nil
}

// CancelTrip stops the loops, then cancels and clears the active trip.
func (o *Orchestrator) CancelTrip(reason string) (journey.TripState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelLocked(reason)
}

func (o *Orchestrator) cancelLocked(reason string) (journey.TripState, error) {
	if !o.lifecycle.Active() {
		logging.LogRejected(o.logger, "cancel_trip", "no active trip")
		return journey.TripState{}, ErrNoActiveTrip
	}
	o.loops.Stop()
	final, ok := o.lifecycle.Cancel(reason)
	if !ok {
		return journey.TripState{}, ErrNoActiveTrip
	}
	o.rerouter.Reset()
	o.checker.Reset()
	return final, nil
}

// AcceptReroute applies the pending reroute. It returns nil when nothing is
// pending.
func (o *Orchestrator) AcceptReroute(ctx context.Context) *journey.TripState {
	return o.rerouter.Accept(ctx)
}

// DeclineReroute drops the pending reroute.
func (o *Orchestrator) DeclineReroute() bool {
	return o.rerouter.Decline()
}

func (o *Orchestrator) PendingReroute() *journey.RerouteDecision {
	return o.rerouter.Pending()
}

func (o *Orchestrator) RerouteHistory() []journey.RerouteHistoryEntry {
	return o.rerouter.History()
}

// Snapshot returns a copy of the active trip.
func (o *Orchestrator) Snapshot() (journey.TripState, bool) {
	return o.lifecycle.Snapshot()
}

// Progress reports how far along the active trip is.
func (o *Orchestrator) Progress() (journey.Progress, bool) {
	st, ok := o.lifecycle.Snapshot()
	if !ok {
		return journey.Progress{}, false
	}
	return trip.ComputeProgress(st), true
}

// Events is the merged feed. It is closed by Close.
func (o *Orchestrator) Events() <-chan journey.Event {
	return o.events
}

// Subscribe registers fn for every event and returns a func that removes it.
// fn runs on the emitting goroutine and must not block.
func (o *Orchestrator) Subscribe(fn func(journey.Event)) func() {
	o.feedMu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.feedMu.Unlock()
	return func() {
		o.feedMu.Lock()
		delete(o.subs, id)
		o.feedMu.Unlock()
	}
}

func (o *Orchestrator) emit(ev journey.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now()
	}

	o.feedMu.RLock()
	if o.closed {
		o.feedMu.RUnlock()
		return
	}
	select {
	case o.events <- ev:
	default:
		o.logger.Debug("event feed full, dropping event", slog.String("type", string(ev.Type)), slog.String("action", ev.Action))
	}
	subs := make([]func(journey.Event), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.feedMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
	if o.publisher != nil {
		if err := o.publisher.PublishEvent(o.ctx, ev); err != nil {
			o.logger.Debug("event publish failed", slog.String("type", string(ev.Type)), slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) isClosed() bool {
	o.feedMu.RLock()
	defer o.feedMu.RUnlock()
	return o.closed
}

// Close cancels any active trip, stops the loops and closes the feed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isClosed() {
		return
	}
	if o.lifecycle.Active() {
		_, _ = o.cancelLocked("shutdown")
	}
	o.loops.Stop()
	o.stop()

	o.feedMu.Lock()
	o.closed = true
	close(o.events)
	o.feedMu.Unlock()
}
