// Package journey defines the data model shared by planning, trip execution
// and rerouting, plus the collaborator capabilities the core consumes.
package journey

import (
	"fmt"
	"strings"
	"time"

	"tripnav/internal/geo"
)

// Location is an immutable WGS-84 fix. Confidence and IsFiltered mark a fix
// that was snapped to a known node rather than taken raw from GPS.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
	Confidence float64   `json:"confidence,omitempty"`
	IsFiltered bool      `json:"isFiltered,omitempty"`
}

// DistanceTo returns the great-circle distance in meters.
func (l Location) DistanceTo(o Location) float64 {
	return geo.Distance(l.Latitude, l.Longitude, o.Latitude, o.Longitude)
}

// BearingTo returns the initial bearing in degrees.
func (l Location) BearingTo(o Location) float64 {
	return geo.Bearing(l.Latitude, l.Longitude, o.Latitude, o.Longitude)
}

func (l Location) Point() geo.Point { return geo.Point{Lat: l.Latitude, Lon: l.Longitude} }

func (l Location) String() string { return fmt.Sprintf("%.6f,%.6f", l.Latitude, l.Longitude) }

// Stop is anything a leg can start or end at: a bus stop, a keke park, or a
// free point such as the traveler's origin.
type Stop struct {
	ID        string  `json:"id" validate:"required"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Area      string  `json:"area,omitempty"`
}

func (s Stop) Location() Location { return Location{Latitude: s.Latitude, Longitude: s.Longitude} }

// PointStop wraps a free location as a stop. The id is derived from the
// coordinates so that identical points give identical leg signatures.
func PointStop(name string, loc Location) Stop {
	return Stop{
		ID:        "pt:" + loc.String(),
		Name:      name,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}
}

// Segment is one mode-homogeneous leg of an itinerary.
type Segment struct {
	ID                   string        `json:"id"`
	From                 Stop          `json:"fromStop"`
	To                   Stop          `json:"toStop"`
	DistanceMeters       float64       `json:"distanceMeters"`
	EstimatedTimeMinutes float64       `json:"estimatedTimeMinutes"`
	Mode                 TransportMode `json:"mode"`
	Cost                 float64       `json:"cost"`
	Instructions         string        `json:"instructions"`
	Polyline             string        `json:"polyline,omitempty"`
	IsBridge             bool          `json:"isBridge,omitempty"`
	IsBlocked            bool          `json:"isBlocked,omitempty"`
	Barriers             []string      `json:"barriers,omitempty"`
}

// Strategy tags how an itinerary was assembled.
type Strategy string

const (
	StrategyShortest   Strategy = "shortest"
	StrategyCheapest   Strategy = "cheapest"
	StrategyBalanced   Strategy = "balanced"
	StrategyDirectWalk Strategy = "direct_walk"
)

// RankingScore holds the normalized 0..100 scores of an itinerary within its
// candidate set.
type RankingScore struct {
	Shortest float64 `json:"shortest"`
	Cheapest float64 `json:"cheapest"`
	Balanced float64 `json:"balanced"`
}

// ArrivalWindow is the confidence band around the total travel time.
type ArrivalWindow struct {
	MinMinutes float64 `json:"minMinutes"`
	MaxMinutes float64 `json:"maxMinutes"`
	Confidence float64 `json:"confidence"`
}

// Route is a complete itinerary. Once selected for a trip it is never
// mutated; a reroute produces a new Route.
type Route struct {
	ID            string         `json:"id"`
	Segments      []Segment      `json:"segments"`
	TotalDistance float64        `json:"totalDistance"`
	TotalTime     float64        `json:"totalTime"`
	TotalCost     float64        `json:"totalCost"`
	Score         RankingScore   `json:"rankingScore"`
	Strategy      Strategy       `json:"strategy"`
	GeneratedAt   time.Time      `json:"generatedAt"`
	ArrivalWindow *ArrivalWindow `json:"arrivalWindow,omitempty"`
}

// Signature identifies an itinerary by its ordered (from, to, mode) legs.
func (r Route) Signature() string {
	var b strings.Builder
	for i, s := range r.Segments {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(s.From.ID)
		b.WriteString(">")
		b.WriteString(s.To.ID)
		b.WriteString("@")
		b.WriteString(string(s.Mode.Type))
	}
	return b.String()
}

// TransitLegs counts the legs that are not walking.
func (r Route) TransitLegs() int {
	n := 0
	for _, s := range r.Segments {
		if s.Mode.Type != ModeWalk {
			n++
		}
	}
	return n
}

// Clone copies the leg slice so callers cannot alias a running itinerary.
func (r Route) Clone() Route {
	out := r
	out.Segments = append([]Segment(nil), r.Segments...)
	if r.ArrivalWindow != nil {
		w := *r.ArrivalWindow
		out.ArrivalWindow = &w
	}
	return out
}

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	StatusNotStarted TripStatus = "not_started"
	StatusInProgress TripStatus = "in_progress"
	StatusPaused     TripStatus = "paused"
	StatusCompleted  TripStatus = "completed"
	StatusCancelled  TripStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s TripStatus) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// MilestoneType tags a checkpoint.
type MilestoneType string

const (
	MilestoneDeparture MilestoneType = "departure"
	MilestoneTransfer  MilestoneType = "transfer"
	MilestoneArrival   MilestoneType = "arrival"
)

// Milestone is a leg boundary tracked during execution.
type Milestone struct {
	ID               string        `json:"id"`
	SegmentIndex     int           `json:"segmentIndex"`
	StopID           string        `json:"stopId"`
	StopName         string        `json:"stopName"`
	Location         Location      `json:"location"`
	Type             MilestoneType `json:"type"`
	EstimatedArrival time.Time     `json:"estimatedArrivalTime"`
	Reached          bool          `json:"reached"`
	ReachedAt        time.Time     `json:"reachedAt,omitzero"`
	Skipped          bool          `json:"skipped,omitempty"`
	Notified         bool          `json:"notified,omitempty"`
}

// TripState is the single active trip. It is only ever replaced wholesale by
// the lifecycle; readers always get a Clone.
type TripState struct {
	TripID              string      `json:"tripId"`
	UserID              string      `json:"userId"`
	Route               Route       `json:"selectedRoute"`
	CurrentSegmentIndex int         `json:"currentSegmentIndex"`
	Status              TripStatus  `json:"status"`
	Milestones          []Milestone `json:"milestones"`
	StartLocation       Location    `json:"startLocation"`
	CurrentLocation     Location    `json:"currentLocation"`
	DestinationLocation Location    `json:"destinationLocation"`
	StartTime           time.Time   `json:"startTime"`
	EndTime             time.Time   `json:"endTime,omitzero"`
	LastUpdated         time.Time   `json:"lastUpdated"`
	DeviationDetected   bool        `json:"deviationDetected"`
	RerouteCount        int         `json:"rerouteCount"`
}

// Clone deep-copies the slices so the snapshot can be handed out safely.
func (t TripState) Clone() TripState {
	out := t
	out.Route = t.Route.Clone()
	out.Milestones = append([]Milestone(nil), t.Milestones...)
	return out
}

// CurrentSegment returns the active leg.
func (t TripState) CurrentSegment() (Segment, bool) {
	if t.CurrentSegmentIndex < 0 || t.CurrentSegmentIndex >= len(t.Route.Segments) {
		return Segment{}, false
	}
	return t.Route.Segments[t.CurrentSegmentIndex], true
}

// Severity grades how far off the plan a traveler is.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// DeviationAnalysis is recomputed on every check and never persisted.
type DeviationAnalysis struct {
	IsDeviated        bool          `json:"isDeviated"`
	DistanceFromRoute float64       `json:"distanceFromRoute"`
	Severity          Severity      `json:"severity"`
	ShouldReroute     bool          `json:"shouldReroute"`
	Reason            string        `json:"reason"`
	Duration          time.Duration `json:"duration"`
	ConsecutiveCount  int           `json:"consecutiveCount"`
	Location          Location      `json:"location"`
}

// RerouteDecision is a proposed replacement awaiting accept or decline.
type RerouteDecision struct {
	TripID            string    `json:"tripId"`
	CurrentRoute      Route     `json:"currentRoute"`
	ProposedRoute     Route     `json:"proposedRoute"`
	DeviationDistance float64   `json:"deviationDistance"`
	Severity          Severity  `json:"severity"`
	Reason            string    `json:"reason"`
	DeviationPoint    Location  `json:"deviationPoint"`
	Timestamp         time.Time `json:"timestamp"`
}

// RerouteTrigger records who applied a reroute.
type RerouteTrigger string

const (
	TriggerAuto   RerouteTrigger = "auto"
	TriggerManual RerouteTrigger = "manual"
)

// RerouteHistoryEntry is one applied reroute of the active trip.
type RerouteHistoryEntry struct {
	Timestamp      time.Time      `json:"timestamp"`
	TriggerReason  string         `json:"triggerReason"`
	OldRoute       Route          `json:"oldRoute"`
	NewRoute       Route          `json:"newRoute"`
	DeviationPoint Location       `json:"deviationPoint"`
	Trigger        RerouteTrigger `json:"trigger"`
}

// Progress is the read-only view of how far along the active trip is.
type Progress struct {
	Percentage        float64    `json:"percentage"`
	RemainingDistance float64    `json:"remainingDistance"`
	RemainingTime     float64    `json:"remainingTime"`
	CompletedSegments int        `json:"completedSegments"`
	TotalSegments     int        `json:"totalSegments"`
	CurrentMilestone  *Milestone `json:"currentMilestone,omitempty"`
}
