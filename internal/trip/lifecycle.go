// Package trip runs the single active trip: its state machine, the milestone
// list derived from the chosen itinerary, and live location handling.
package trip

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripnav/internal/journey"
	"tripnav/internal/logging"
	"tripnav/internal/metrics"
)

// Lifecycle owns the active TripState cell. Every change is computed on a
// copy and swapped in under the lock, so readers never see a half-applied
// transition. Events are emitted after the lock is released.
type Lifecycle struct {
	mu    sync.Mutex
	state *journey.TripState

	logger  *slog.Logger
	metrics *metrics.Collector
	emit    journey.EmitFunc
	now     func() time.Time
}

func NewLifecycle(logger *slog.Logger, m *metrics.Collector, emit journey.EmitFunc, now func() time.Time) *Lifecycle {
	if emit == nil {
		emit = func(journey.Event) {}
	}
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{
		logger:  logging.OrDefault(logger).With(slog.String("component", "lifecycle")),
		metrics: m,
		emit:    emit,
		now:     now,
	}
}

// Start replaces the cell with a fresh in-progress trip. Enforcing a single
// active trip is up to the caller.
func (l *Lifecycle) Start(userID string, route journey.Route, start, destination journey.Location, startIndex int, milestones []journey.Milestone) journey.TripState {
	now := l.now()
	st := journey.TripState{
		TripID:              uuid.NewString(),
		UserID:              userID,
		Route:               route.Clone(),
		CurrentSegmentIndex: clampIndex(startIndex, len(route.Segments)),
		Status:              journey.StatusInProgress,
		Milestones:          append([]journey.Milestone(nil), milestones...),
		StartLocation:       start,
		CurrentLocation:     start,
		DestinationLocation: destination,
		StartTime:           now,
		LastUpdated:         now,
	}

	l.mu.Lock()
	if l.state != nil {
		l.logger.Warn("replacing active trip", slog.String("trip_id", l.state.TripID))
	}
	l.state = &st
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.TripsStarted.Inc()
		l.metrics.ActiveTrips.Set(1)
	}
	l.logger.Info("trip started",
		slog.String("trip_id", st.TripID),
		slog.String("user_id", userID),
		slog.Int("segments", len(route.Segments)),
		slog.Int("start_index", st.CurrentSegmentIndex))
	snap := st.Clone()
	l.emit(journey.Event{
		Type: journey.EventStatusChange, Action: journey.ActionStarted,
		TripID: st.TripID, UserID: userID, Timestamp: now, State: &snap,
	})
	return st.Clone()
}

// Pause moves an in-progress trip to paused. Any other state is rejected
// with a warning and left unchanged.
func (l *Lifecycle) Pause() (journey.TripState, bool) {
	return l.transition("pause", journey.StatusInProgress, journey.StatusPaused, journey.ActionPaused)
}

// Resume moves a paused trip back to in_progress.
func (l *Lifecycle) Resume() (journey.TripState, bool) {
	return l.transition("resume", journey.StatusPaused, journey.StatusInProgress, journey.ActionResumed)
}

func (l *Lifecycle) transition(op string, from, to journey.TripStatus, action string) (journey.TripState, bool) {
	l.mu.Lock()
	if l.state == nil || l.state.Status != from {
		reason := "no active trip"
		if l.state != nil {
			reason = "trip is " + string(l.state.Status)
		}
		l.mu.Unlock()
		logging.LogRejected(l.logger, op, reason)
		return journey.TripState{}, false
	}
	next := l.state.Clone()
	next.Status = to
	next.LastUpdated = l.now()
	l.state = &next
	l.mu.Unlock()

	snap := next.Clone()
	l.emit(journey.Event{
		Type: journey.EventStatusChange, Action: action,
		TripID: next.TripID, UserID: next.UserID, Timestamp: next.LastUpdated, State: &snap,
	})
	return next.Clone(), true
}

// Complete ends the trip as completed and clears the cell. The event carries
// the trip duration and the number of completed legs.
func (l *Lifecycle) Complete() (journey.TripState, bool) {
	st, ok := l.finish("complete", journey.StatusCompleted)
	if !ok {
		return st, false
	}
	if l.metrics != nil {
		l.metrics.TripsCompleted.Inc()
	}
	duration := st.EndTime.Sub(st.StartTime)
	completed := CompletedSegments(st)
	logging.LogOperation(l.logger, "trip_completed",
		slog.String("trip_id", st.TripID),
		slog.Int("completed_segments", completed),
		slog.Duration("duration", duration))
	snap := st.Clone()
	l.emit(journey.Event{
		Type: journey.EventStatusChange, Action: journey.ActionCompleted,
		TripID: st.TripID, UserID: st.UserID, Timestamp: st.EndTime, State: &snap,
		Duration: duration, CompletedSegments: completed,
	})
	return st, true
}

// Cancel ends the trip as cancelled and clears the cell.
func (l *Lifecycle) Cancel(reason string) (journey.TripState, bool) {
	st, ok := l.finish("cancel", journey.StatusCancelled)
	if !ok {
		return st, false
	}
	if l.metrics != nil {
		l.metrics.TripsCancelled.Inc()
	}
	l.logger.Info("trip cancelled", slog.String("trip_id", st.TripID), slog.String("reason", reason))
	snap := st.Clone()
	l.emit(journey.Event{
		Type: journey.EventStatusChange, Action: journey.ActionCancelled,
		TripID: st.TripID, UserID: st.UserID, Timestamp: st.EndTime, State: &snap,
		Reason: reason,
	})
	return st, true
}

func (l *Lifecycle) finish(op string, status journey.TripStatus) (journey.TripState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		logging.LogRejected(l.logger, op, "no active trip")
		return journey.TripState{}, false
	}
	final := l.state.Clone()
	final.Status = status
	final.EndTime = l.now()
	final.LastUpdated = final.EndTime
	l.state = nil
	if l.metrics != nil {
		l.metrics.ActiveTrips.Set(0)
	}
	return final, true
}

// ApplyNewRoute swaps in a replacement itinerary for trip tripID, resets the
// leg index and bumps the reroute count. Milestones are left alone; pass a
// then func to rebuild them in the same swap.
func (l *Lifecycle) ApplyNewRoute(tripID string, route journey.Route, then ...func(*journey.TripState)) (journey.TripState, bool) {
	return l.Update(func(s *journey.TripState) bool {
		if s.TripID != tripID || s.Status.Terminal() {
			return false
		}
		s.Route = route.Clone()
		s.CurrentSegmentIndex = 0
		s.RerouteCount++
		for _, fn := range then {
			fn(s)
		}
		return true
	})
}

// Update runs fn against a copy of the active state and stores the copy when
// fn returns true. It returns the stored state, or false when there was no
// active trip or fn declined the change.
func (l *Lifecycle) Update(fn func(*journey.TripState) bool) (journey.TripState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return journey.TripState{}, false
	}
	next := l.state.Clone()
	if !fn(&next) {
		return journey.TripState{}, false
	}
	next.CurrentSegmentIndex = clampIndex(next.CurrentSegmentIndex, len(next.Route.Segments))
	if next.RerouteCount < l.state.RerouteCount {
		next.RerouteCount = l.state.RerouteCount
	}
	next.LastUpdated = l.now()
	l.state = &next
	return next.Clone(), true
}

// Snapshot returns a copy of the active trip.
func (l *Lifecycle) Snapshot() (journey.TripState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return journey.TripState{}, false
	}
	return l.state.Clone(), true
}

// Active reports whether a trip occupies the cell.
func (l *Lifecycle) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state != nil
}

func clampIndex(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
