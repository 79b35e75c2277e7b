// Package notify holds journey.Notifier implementations that need no
// external transport.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tripnav/internal/journey"
	"tripnav/internal/logging"
)

// Log writes every notification as a structured log line.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logging.OrDefault(logger).With(slog.String("component", "notify"))}
}

func (l *Log) SendMilestoneNotification(ctx context.Context, trip journey.TripState, m journey.Milestone) error {
	l.logger.InfoContext(ctx, "milestone",
		slog.String("trip_id", trip.TripID),
		slog.String("milestone_id", m.ID),
		slog.String("stop", m.StopName),
		slog.Bool("reached", m.Reached))
	return nil
}

func (l *Log) SendRerouteNotification(ctx context.Context, trip journey.TripState, reason string) error {
	l.logger.InfoContext(ctx, "route updated",
		slog.String("trip_id", trip.TripID),
		slog.Int("reroute_count", trip.RerouteCount),
		slog.String("reason", reason))
	return nil
}

func (l *Log) SendTripCompletedNotification(ctx context.Context, trip journey.TripState) error {
	l.logger.InfoContext(ctx, "trip completed", slog.String("trip_id", trip.TripID))
	return nil
}

func (l *Log) TriggerVibration(ctx context.Context, pattern []time.Duration) error {
	l.logger.DebugContext(ctx, "vibrate", slog.Any("pattern", pattern))
	return nil
}

func (l *Log) ShowInAppAlert(ctx context.Context, title, message string) error {
	l.logger.InfoContext(ctx, "alert", slog.String("title", title), slog.String("message", message))
	return nil
}

// Multi fans out to every notifier. Failures are logged and never returned,
// so one broken channel does not hide the others.
type Multi struct {
	notifiers []journey.Notifier
	logger    *slog.Logger
}

func NewMulti(logger *slog.Logger, notifiers ...journey.Notifier) *Multi {
	out := make([]journey.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return &Multi{notifiers: out, logger: logging.OrDefault(logger).With(slog.String("component", "notify"))}
}

func (m *Multi) each(ctx context.Context, op string, fn func(journey.Notifier) error) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		m.logger.WarnContext(ctx, "notification failed", slog.String("operation", op), slog.String("error", err.Error()))
	}
	return nil
}

func (m *Multi) SendMilestoneNotification(ctx context.Context, trip journey.TripState, ms journey.Milestone) error {
	return m.each(ctx, "milestone", func(n journey.Notifier) error { return n.SendMilestoneNotification(ctx, trip, ms) })
}

func (m *Multi) SendRerouteNotification(ctx context.Context, trip journey.TripState, reason string) error {
	return m.each(ctx, "reroute", func(n journey.Notifier) error { return n.SendRerouteNotification(ctx, trip, reason) })
}

func (m *Multi) SendTripCompletedNotification(ctx context.Context, trip journey.TripState) error {
	return m.each(ctx, "completed", func(n journey.Notifier) error { return n.SendTripCompletedNotification(ctx, trip) })
}

func (m *Multi) TriggerVibration(ctx context.Context, pattern []time.Duration) error {
	return m.each(ctx, "vibrate", func(n journey.Notifier) error { return n.TriggerVibration(ctx, pattern) })
}

func (m *Multi) ShowInAppAlert(ctx context.Context, title, message string) error {
	return m.each(ctx, "alert", func(n journey.Notifier) error { return n.ShowInAppAlert(ctx, title, message) })
}
