// Package reroute turns reroute recommendations into replacement itineraries,
// either applied at once or held for the traveler to accept or decline.
package reroute

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tripnav/internal/deviation"
	"tripnav/internal/journey"
	"tripnav/internal/logging"
	"tripnav/internal/metrics"
	"tripnav/internal/planner"
	"tripnav/internal/trip"
)

var errNoCandidates = errors.New("no alternative routes")

// Planner regenerates itineraries from the traveler's position.
type Planner interface {
	GenerateRoutes(ctx context.Context, origin, destination journey.Location, maxAlternatives int) (planner.Plan, error)
}

type Options struct {
	Lifecycle *trip.Lifecycle
	Planner   Planner
	Checker   *deviation.Checker
	Notifier  journey.Notifier
	Settings  journey.Settings
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Emit      journey.EmitFunc
	Now       func() time.Time
}

// Engine is the rerouting engine. At most one decision is pending at a time;
// history covers the active trip only.
type Engine struct {
	lifecycle *trip.Lifecycle
	planner   Planner
	checker   *deviation.Checker
	notifier  journey.Notifier
	settings  journey.Settings
	logger    *slog.Logger
	metrics   *metrics.Collector
	emit      journey.EmitFunc
	now       func() time.Time

	mu      sync.Mutex
	pending *journey.RerouteDecision
	history []journey.RerouteHistoryEntry
}

func New(opts Options) *Engine {
	e := &Engine{
		lifecycle: opts.Lifecycle,
		planner:   opts.Planner,
		checker:   opts.Checker,
		notifier:  opts.Notifier,
		settings:  opts.Settings,
		logger:    logging.OrDefault(opts.Logger).With(slog.String("component", "reroute")),
		metrics:   opts.Metrics,
		emit:      opts.Emit,
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

// Handle reacts to a reroute recommendation. It does nothing when the trip
// is already deviated or a decision is pending. Route regeneration happens
// outside every lock; the result is only applied to the same trip.
func (e *Engine) Handle(ctx context.Context, a journey.DeviationAnalysis) {
	if !a.ShouldReroute {
		return
	}
	e.mu.Lock()
	busy := e.pending != nil
	e.mu.Unlock()
	if busy {
		return
	}

	st, ok := e.lifecycle.Update(func(s *journey.TripState) bool {
		if s.Status != journey.StatusInProgress || s.DeviationDetected {
			return false
		}
		s.DeviationDetected = true
		return true
	})
	if !ok {
		return
	}

	trigger := journey.TriggerManual
	if e.settings.AutoRerouteEnabled {
		trigger = journey.TriggerAuto
	}
	e.logger.Info("deviation detected",
		slog.String("trip_id", st.TripID),
		slog.Float64("distance_m", a.DistanceFromRoute),
		slog.String("severity", string(a.Severity)),
		slog.String("trigger", string(trigger)))
	e.emit(journey.Event{
		Type: journey.EventDeviation, Action: journey.ActionDetected,
		TripID: st.TripID, UserID: st.UserID, Timestamp: e.now(), State: snapshot(st),
		Deviation: &a, DistanceMeters: a.DistanceFromRoute, Message: a.Reason,
	})

	proposed, err := e.regenerate(ctx, st)
	if err != nil {
		e.fail(ctx, st, trigger, err)
		return
	}
	d := journey.RerouteDecision{
		TripID:            st.TripID,
		CurrentRoute:      st.Route,
		ProposedRoute:     proposed,
		DeviationDistance: a.DistanceFromRoute,
		Severity:          a.Severity,
		Reason:            a.Reason,
		DeviationPoint:    st.CurrentLocation,
		Timestamp:         e.now(),
	}
	if trigger == journey.TriggerAuto {
		if _, ok := e.apply(ctx, d, journey.TriggerAuto); !ok {
			e.logger.Debug("trip changed during reroute, discarding", slog.String("trip_id", st.TripID))
		}
		return
	}
	e.propose(ctx, st, d)
}

func (e *Engine) regenerate(ctx context.Context, st journey.TripState) (journey.Route, error) {
	if e.planner == nil {
		return journey.Route{}, errNoCandidates
	}
	plan, err := e.planner.GenerateRoutes(ctx, st.CurrentLocation, st.DestinationLocation, e.settings.MaxRouteCandidates)
	if err != nil {
		return journey.Route{}, err
	}
	if len(plan.Routes) == 0 {
		return journey.Route{}, errNoCandidates
	}
	return plan.Routes[0], nil
}

// apply swaps in d.ProposedRoute, rebuilds milestones and clears the
// deviation state in one step, then records history and notifies.
func (e *Engine) apply(ctx context.Context, d journey.RerouteDecision, trigger journey.RerouteTrigger) (journey.TripState, bool) {
	now := e.now()
	st, ok := e.lifecycle.ApplyNewRoute(d.TripID, d.ProposedRoute, func(s *journey.TripState) {
		s.Milestones = trip.BuildMilestones(s.Route, 0, now)
		s.DeviationDetected = false
	})
	e.mu.Lock()
	e.pending = nil
	if ok {
		e.history = append(e.history, journey.RerouteHistoryEntry{
			Timestamp:      now,
			TriggerReason:  d.Reason,
			OldRoute:       d.CurrentRoute,
			NewRoute:       st.Route,
			DeviationPoint: d.DeviationPoint,
			Trigger:        trigger,
		})
	}
	e.mu.Unlock()
	if !ok {
		return journey.TripState{}, false
	}
	if e.checker != nil {
		e.checker.Reset()
	}
	e.count(trigger, "applied")

	logging.LogOperation(e.logger, "reroute_applied",
		slog.String("trip_id", st.TripID),
		slog.String("trigger", string(trigger)),
		slog.Int("reroute_count", st.RerouteCount),
		slog.String("route_id", st.Route.ID))
	e.emit(journey.Event{
		Type: journey.EventReroute, Action: journey.ActionApplied,
		TripID: st.TripID, UserID: st.UserID, Timestamp: now, State: snapshot(st),
		Decision: &d, Trigger: trigger, Reason: d.Reason,
	})
	if e.notifier != nil {
		if err := e.notifier.SendRerouteNotification(ctx, st, d.Reason); err != nil {
			e.logger.Debug("reroute notification failed", slog.String("error", err.Error()))
		}
	}
	return st, true
}

func (e *Engine) propose(ctx context.Context, st journey.TripState, d journey.RerouteDecision) {
	e.mu.Lock()
	e.pending = &d
	e.mu.Unlock()
	e.count(journey.TriggerManual, "proposed")

	e.logger.Info("reroute proposed", slog.String("trip_id", st.TripID), slog.String("route_id", d.ProposedRoute.ID))
	e.emit(journey.Event{
		Type: journey.EventReroute, Action: journey.ActionProposed,
		TripID: st.TripID, UserID: st.UserID, Timestamp: d.Timestamp, State: snapshot(st),
		Decision: &d, Trigger: journey.TriggerManual, Reason: d.Reason,
	})
	if e.notifier != nil {
		if err := e.notifier.ShowInAppAlert(ctx, "New route available", d.Reason); err != nil {
			e.logger.Debug("in-app alert failed", slog.String("error", err.Error()))
		}
	}
}

// fail clears the deviated flag and keeps the current route.
func (e *Engine) fail(ctx context.Context, st journey.TripState, trigger journey.RerouteTrigger, cause error) {
	cleared, ok := e.lifecycle.Update(func(s *journey.TripState) bool {
		if s.TripID != st.TripID {
			return false
		}
		s.DeviationDetected = false
		return true
	})
	if ctx.Err() != nil || !ok {
		return
	}
	e.count(trigger, "failed")
	logging.LogError(e.logger, "reroute failed", cause, slog.String("trip_id", st.TripID))
	e.emit(journey.Event{
		Type: journey.EventReroute, Action: journey.ActionFailed,
		TripID: st.TripID, UserID: st.UserID, Timestamp: e.now(), State: snapshot(cleared),
		Trigger: trigger, Reason: cause.Error(),
	})
}

// Accept applies the pending decision. It returns nil, logging a warning,
// when nothing is pending or the trip has ended.
func (e *Engine) Accept(ctx context.Context) *journey.TripState {
	e.mu.Lock()
	d := e.pending
	e.mu.Unlock()
	if d == nil {
		logging.LogRejected(e.logger, "accept_reroute", "no pending reroute")
		return nil
	}
	st, ok := e.apply(ctx, *d, journey.TriggerManual)
	if !ok {
		logging.LogRejected(e.logger, "accept_reroute", "trip no longer active", slog.String("trip_id", d.TripID))
		return nil
	}
	return &st
}

// Decline drops the pending decision and clears only the deviated flag;
// deviation tracking keeps its timer and counter.
func (e *Engine) Decline() bool {
	e.mu.Lock()
	d := e.pending
	e.pending = nil
	e.mu.Unlock()
	if d == nil {
		logging.LogRejected(e.logger, "decline_reroute", "no pending reroute")
		return false
	}

	st, ok := e.lifecycle.Update(func(s *journey.TripState) bool {
		if s.TripID != d.TripID {
			return false
		}
		s.DeviationDetected = false
		return true
	})
	e.count(journey.TriggerManual, "declined")
	e.logger.Info("reroute declined", slog.String("trip_id", d.TripID))
	ev := journey.Event{
		Type: journey.EventReroute, Action: journey.ActionDeclined,
		TripID: d.TripID, Timestamp: e.now(), Decision: d, Trigger: journey.TriggerManual,
	}
	if ok {
		ev.UserID = st.UserID
		ev.State = snapshot(st)
	}
	e.emit(ev)
	return true
}

// Pending returns a copy of the decision awaiting the traveler, or nil.
func (e *Engine) Pending() *journey.RerouteDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return nil
	}
	d := *e.pending
	return &d
}

// History returns the reroutes applied to the active trip, oldest first.
func (e *Engine) History() []journey.RerouteHistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]journey.RerouteHistoryEntry(nil), e.history...)
}

// Reset discards the pending decision and history when a trip ends.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.pending = nil
	e.history = nil
	e.mu.Unlock()
}

func (e *Engine) count(trigger journey.RerouteTrigger, outcome string) {
	if e.metrics != nil {
		e.metrics.Reroutes.WithLabelValues(string(trigger), outcome).Inc()
	}
}

func snapshot(st journey.TripState) *journey.TripState {
	cp := st.Clone()
	return &cp
}
