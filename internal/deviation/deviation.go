// Package deviation measures how far the traveler is from the active leg and
// grades it into a severity and a reroute recommendation.
package deviation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"tripnav/internal/geo"
	"tripnav/internal/journey"
	"tripnav/internal/logging"
	"tripnav/internal/metrics"
)

// Severity thresholds. A reading must exceed a bound to reach that grade.
const (
	SevereDistanceMeters   = 500.0
	ModerateDistanceMeters = 200.0
	SevereDuration         = 300 * time.Second
	ModerateDuration       = 120 * time.Second
	SevereCount            = 10
	ModerateCount          = 5

	// Minimum time off route before lower grades recommend a reroute.
	ModerateRerouteAfter = 60 * time.Second
	MinorRerouteAfter    = 180 * time.Second
)

// Classify grades a deviated reading. It is non-decreasing in each argument.
func Classify(distance float64, offRoute time.Duration, consecutive int) journey.Severity {
	switch {
	case distance > SevereDistanceMeters || offRoute > SevereDuration || consecutive > SevereCount:
		return journey.SeveritySevere
	case distance > ModerateDistanceMeters || offRoute > ModerateDuration || consecutive > ModerateCount:
		return journey.SeverityModerate
	default:
		return journey.SeverityMinor
	}
}

// ShouldReroute applies the recommendation rule. Once rerouteCount reaches
// maxAttempts it is always false.
func ShouldReroute(sev journey.Severity, offRoute time.Duration, rerouteCount, maxAttempts int) bool {
	if rerouteCount >= maxAttempts {
		return false
	}
	switch sev {
	case journey.SeveritySevere:
		return true
	case journey.SeverityModerate:
		return offRoute > ModerateRerouteAfter
	case journey.SeverityMinor:
		return offRoute > MinorRerouteAfter
	}
	return false
}

// Checker keeps the off-route timer and consecutive counter between checks.
type Checker struct {
	mu    sync.Mutex
	since time.Time
	count int

	threshold     float64
	maxAttempts   int
	interval      time.Duration
	useProjection bool

	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewChecker(settings journey.Settings, logger *slog.Logger, m *metrics.Collector, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{
		threshold:     settings.DeviationThresholdMeters,
		maxAttempts:   settings.MaxRerouteAttempts,
		interval:      settings.DeviationCheckInterval,
		useProjection: settings.DeviationUseProjection,
		logger:        logging.OrDefault(logger).With(slog.String("component", "deviation")),
		metrics:       m,
		now:           now,
	}
}

// Distance is how far loc is from the active leg of s. By default it is the
// nearer of the two leg endpoints; with projection enabled it is the
// perpendicular distance to the leg's path.
func (c *Checker) Distance(s journey.TripState, loc journey.Location) float64 {
	seg, ok := s.CurrentSegment()
	if !ok {
		return loc.DistanceTo(s.DestinationLocation)
	}
	if c.useProjection {
		return projected(seg, loc)
	}
	return math.Min(loc.DistanceTo(seg.From.Location()), loc.DistanceTo(seg.To.Location()))
}

func projected(seg journey.Segment, loc journey.Location) float64 {
	if seg.Polyline != "" {
		if pts, err := geo.DecodePolyline(seg.Polyline); err == nil && len(pts) >= 2 {
			return geo.DistanceToPolyline(loc.Point(), pts)
		}
	}
	d, _ := geo.PointToSegment(loc.Point(), seg.From.Location().Point(), seg.To.Location().Point())
	return d
}

// Check evaluates the current location of s at now and advances or clears the
// deviation timer.
func (c *Checker) Check(s journey.TripState, now time.Time) journey.DeviationAnalysis {
	loc := s.CurrentLocation
	dist := c.Distance(s, loc)

	c.mu.Lock()
	if dist <= c.threshold {
		c.since = time.Time{}
		c.count = 0
		c.mu.Unlock()
		c.observe(journey.SeverityNone)
		return journey.DeviationAnalysis{DistanceFromRoute: dist, Severity: journey.SeverityNone, Location: loc}
	}
	if c.since.IsZero() {
		c.since = now
	}
	c.count++
	offRoute := now.Sub(c.since)
	count := c.count
	c.mu.Unlock()

	sev := Classify(dist, offRoute, count)
	c.observe(sev)
	return journey.DeviationAnalysis{
		IsDeviated:        true,
		DistanceFromRoute: dist,
		Severity:          sev,
		ShouldReroute:     ShouldReroute(sev, offRoute, s.RerouteCount, c.maxAttempts),
		Reason:            fmt.Sprintf("%.0f m off route for %s (%d consecutive checks)", dist, offRoute.Round(time.Second), count),
		Duration:          offRoute,
		ConsecutiveCount:  count,
		Location:          loc,
	}
}

func (c *Checker) observe(sev journey.Severity) {
	if c.metrics != nil {
		c.metrics.DeviationChecks.WithLabelValues(string(sev)).Inc()
	}
}

// Reset clears the off-route timer and counter.
func (c *Checker) Reset() {
	c.mu.Lock()
	c.since = time.Time{}
	c.count = 0
	c.mu.Unlock()
}

// Run checks on every interval tick until ctx is done or the trip returned by
// snapshot is no longer in progress. handle is called for every reading that
// recommends a reroute.
func (c *Checker) Run(ctx context.Context, snapshot func() (journey.TripState, bool), handle func(context.Context, journey.DeviationAnalysis)) {
	interval := c.interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if ctx.Err() != nil {
				return
			}
			s, ok := snapshot()
			if !ok || s.Status != journey.StatusInProgress {
				c.logger.Debug("trip not in progress, deviation checks stopped")
				return
			}
			a := c.Check(s, c.now())
			if a.IsDeviated {
				c.logger.Debug("off route",
					slog.String("trip_id", s.TripID),
					slog.Float64("distance_m", a.DistanceFromRoute),
					slog.String("severity", string(a.Severity)),
					slog.Bool("should_reroute", a.ShouldReroute))
			}
			if a.ShouldReroute && handle != nil {
				handle(ctx, a)
			}
		}
	}
}
