package publisher

import (
	"context"
	"strings"
	"time"

	"tripnav/internal/journey"
)

// Notification kinds, used as the last subject token.
const (
	KindMilestone = "milestone"
	KindReroute   = "reroute"
	KindCompleted = "completed"
	KindVibrate   = "vibrate"
	KindAlert     = "alert"
)

// NotificationMessage is what a device-side agent receives.
type NotificationMessage struct {
	Kind      string             `json:"kind"`
	UserID    string             `json:"userId,omitempty"`
	TripID    string             `json:"tripId,omitempty"`
	Title     string             `json:"title,omitempty"`
	Body      string             `json:"body,omitempty"`
	Milestone *journey.Milestone `json:"milestone,omitempty"`
	PatternMs []int64            `json:"patternMs,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Notifier pushes notifications to <prefix>.notify.<userId>.<kind>. Vibration
// and in-app alerts are addressed to the user given at construction.
type Notifier struct {
	pub    *NATSPublisher
	userID string
	now    func() time.Time
}

func NewNotifier(pub *NATSPublisher, userID string) *Notifier {
	return &Notifier{pub: pub, userID: userID, now: time.Now}
}

func (n *Notifier) subject(userID, kind string) string {
	if userID == "" {
		userID = n.userID
	}
	return strings.Join([]string{n.pub.prefix, "notify", subjectToken(userID), kind}, ".")
}

func (n *Notifier) send(ctx context.Context, userID string, msg NotificationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.UserID == "" {
		msg.UserID = n.userID
	}
	msg.Timestamp = n.now()
	return n.pub.publishJSON(n.subject(userID, msg.Kind), msg)
}

func (n *Notifier) SendMilestoneNotification(ctx context.Context, trip journey.TripState, m journey.Milestone) error {
	title := "Approaching " + m.StopName
	if m.Reached {
		title = "Arrived at " + m.StopName
	}
	return n.send(ctx, trip.UserID, NotificationMessage{
		Kind:      KindMilestone,
		UserID:    trip.UserID,
		TripID:    trip.TripID,
		Title:     title,
		Milestone: &m,
	})
}

func (n *Notifier) SendRerouteNotification(ctx context.Context, trip journey.TripState, reason string) error {
	return n.send(ctx, trip.UserID, NotificationMessage{
		Kind:   KindReroute,
		UserID: trip.UserID,
		TripID: trip.TripID,
		Title:  "Route updated",
		Body:   reason,
	})
}

func (n *Notifier) SendTripCompletedNotification(ctx context.Context, trip journey.TripState) error {
	return n.send(ctx, trip.UserID, NotificationMessage{
		Kind:   KindCompleted,
		UserID: trip.UserID,
		TripID: trip.TripID,
		Title:  "You have arrived",
	})
}

func (n *Notifier) TriggerVibration(ctx context.Context, pattern []time.Duration) error {
	ms := make([]int64, len(pattern))
	for i, d := range pattern {
		ms[i] = d.Milliseconds()
	}
	return n.send(ctx, "", NotificationMessage{Kind: KindVibrate, PatternMs: ms})
}

func (n *Notifier) ShowInAppAlert(ctx context.Context, title, message string) error {
	return n.send(ctx, "", NotificationMessage{Kind: KindAlert, Title: title, Body: message})
}
