package journey

import "time"

// EventType tags entries of the merged event feed.
type EventType string

const (
	EventMilestone    EventType = "MILESTONE"
	EventDeviation    EventType = "DEVIATION"
	EventReroute      EventType = "REROUTE"
	EventStatusChange EventType = "STATUS_CHANGE"
)

// Actions carried by events.
const (
	ActionApproaching = "approaching"
	ActionReached     = "reached"

	ActionDetected = "detected"

	ActionApplied  = "applied"
	ActionProposed = "proposed"
	ActionDeclined = "declined"
	ActionFailed   = "failed"

	ActionStarted   = "started"
	ActionPaused    = "paused"
	ActionResumed   = "resumed"
	ActionCompleted = "completed"
	ActionCancelled = "cancelled"
)

// Event is one entry of the feed. State is a snapshot taken when the event
// was emitted; terminal events carry the final state.
type Event struct {
	Type      EventType  `json:"type"`
	Action    string     `json:"action"`
	TripID    string     `json:"tripId"`
	UserID    string     `json:"userId,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	State     *TripState `json:"state,omitempty"`
	Message   string     `json:"message,omitempty"`

	Milestone         *Milestone         `json:"milestone,omitempty"`
	DistanceMeters    float64            `json:"distanceMeters,omitempty"`
	RemainingDistance float64            `json:"remainingDistance,omitempty"`
	RemainingTime     float64            `json:"remainingTime,omitempty"`
	Deviation         *DeviationAnalysis `json:"deviation,omitempty"`
	Decision          *RerouteDecision   `json:"decision,omitempty"`
	Trigger           RerouteTrigger     `json:"trigger,omitempty"`
	Duration          time.Duration      `json:"duration,omitempty"`
	CompletedSegments int                `json:"completedSegments,omitempty"`
	Reason            string             `json:"reason,omitempty"`
}

// EmitFunc receives events from components. It must not block.
type EmitFunc func(Event)
