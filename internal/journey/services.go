package journey

import (
	"context"
	"errors"
	"time"
)

// ErrStopNotFound is returned by stop repositories for unknown ids.
var ErrStopNotFound = errors.New("stop not found")

// StopRepository looks up known stops. Empty results are not errors.
type StopRepository interface {
	FindNearby(ctx context.Context, loc Location, radiusMeters float64) ([]Stop, error)
	FindAll(ctx context.Context) ([]Stop, error)
	FindByID(ctx context.Context, id string) (Stop, error)
	FindByArea(ctx context.Context, area string) ([]Stop, error)
	Save(ctx context.Context, s Stop) error
	Update(ctx context.Context, s Stop) error
}

// RouteResult is a point-to-point lookup answer.
type RouteResult struct {
	DistanceMeters  float64
	DurationMinutes float64
	Path            []Location
	Polyline        string
}

// RoutingService computes point-to-point legs. It may fail; the planner then
// estimates from great-circle distance.
type RoutingService interface {
	CalculateRoute(ctx context.Context, from, to Location, mode ModeType) (RouteResult, error)
	CalculateMultiStopRoute(ctx context.Context, stops []Location, mode ModeType) (RouteResult, error)
}

// FareCalculator is pure: no I/O.
type FareCalculator interface {
	CalculateFare(distanceMeters float64, mode TransportMode) float64
	CalculateSegmentFare(seg Segment) float64
	EstimateTotalFare(r Route) float64
}

// LocationService supplies the traveler's position.
type LocationService interface {
	CurrentLocation(ctx context.Context) (Location, error)
	// WatchLocation streams fixes until ctx is done; the channel is closed then.
	WatchLocation(ctx context.Context) (<-chan Location, error)
	// SnapToNearestNode is best-effort and may return the input unchanged.
	SnapToNearestNode(ctx context.Context, loc Location) (Location, error)
}

// Notifier delivers traveler-facing notifications. Callers treat every method
// as fire-and-forget.
type Notifier interface {
	SendMilestoneNotification(ctx context.Context, trip TripState, m Milestone) error
	SendRerouteNotification(ctx context.Context, trip TripState, reason string) error
	SendTripCompletedNotification(ctx context.Context, trip TripState) error
	TriggerVibration(ctx context.Context, pattern []time.Duration) error
	ShowInAppAlert(ctx context.Context, title, message string) error
}
