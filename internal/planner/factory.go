// Package planner turns an origin and a destination into ranked multi-leg
// itineraries: legs are built by the SegmentFactory, assembled by Build,
// scored by Rank and generated in bulk by Engine.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"tripnav/internal/geo"
	"tripnav/internal/journey"
	"tripnav/internal/logging"
)

// MinTransitMinutes floors the duration of any non-walking leg.
const MinTransitMinutes = 1.0

// SegmentFactory builds single legs. The routing service is optional; when it
// is absent or fails, distance is great-circle and duration is distance/speed.
type SegmentFactory struct {
	catalog journey.Catalog
	routing journey.RoutingService
	fares   journey.FareCalculator
	logger  *slog.Logger
}

func NewSegmentFactory(catalog journey.Catalog, routing journey.RoutingService, fares journey.FareCalculator, logger *slog.Logger) *SegmentFactory {
	return &SegmentFactory{
		catalog: catalog,
		routing: routing,
		fares:   fares,
		logger:  logging.OrDefault(logger),
	}
}

func (f *SegmentFactory) Catalog() journey.Catalog { return f.catalog }

// Walking builds a walking leg. It never fails.
func (f *SegmentFactory) Walking(ctx context.Context, from, to journey.Stop) journey.Segment {
	seg := f.build(ctx, from, to, f.catalog.Walking())
	seg.Instructions = fmt.Sprintf("Walk %s to %s", formatDistance(seg.DistanceMeters), to.Name)
	return seg
}

// Transit builds a leg on a vehicle mode. It fails when the deployment does
// not offer the mode.
func (f *SegmentFactory) Transit(ctx context.Context, from, to journey.Stop, mode journey.ModeType) (journey.Segment, error) {
	m, ok := f.catalog.Get(mode)
	if !ok || m.AvailabilityFactor <= 0 {
		return journey.Segment{}, fmt.Errorf("transport mode %q unavailable", mode)
	}
	if mode == journey.ModeWalk {
		return f.Walking(ctx, from, to), nil
	}
	seg := f.build(ctx, from, to, m)
	if seg.EstimatedTimeMinutes < MinTransitMinutes {
		seg.EstimatedTimeMinutes = MinTransitMinutes
	}
	seg.Instructions = fmt.Sprintf("Take %s from %s to %s (%s)", m.Name, from.Name, to.Name, formatDistance(seg.DistanceMeters))
	return seg, nil
}

func (f *SegmentFactory) build(ctx context.Context, from, to journey.Stop, mode journey.TransportMode) journey.Segment {
	seg := journey.Segment{
		ID:   uuid.NewString(),
		From: from,
		To:   to,
		Mode: mode,
	}
	if f.routing != nil {
		res, err := f.routing.CalculateRoute(ctx, from.Location(), to.Location(), mode.Type)
		if err == nil && res.DistanceMeters >= 0 {
			seg.DistanceMeters = res.DistanceMeters
			seg.EstimatedTimeMinutes = res.DurationMinutes
			seg.Polyline = res.Polyline
		} else if err != nil {
			f.logger.Debug("routing lookup failed, using great-circle estimate",
				slog.String("mode", string(mode.Type)), slog.String("error", err.Error()))
		}
	}
	if seg.DistanceMeters == 0 && seg.EstimatedTimeMinutes == 0 {
		seg.DistanceMeters = geo.Distance(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
		seg.EstimatedTimeMinutes = seg.DistanceMeters / mode.SpeedMetersPerSecond() / 60
	}
	if seg.Polyline == "" {
		seg.Polyline = geo.EncodePolyline([]geo.Point{from.Location().Point(), to.Location().Point()})
	}
	if f.fares != nil {
		seg.Cost = f.fares.CalculateFare(seg.DistanceMeters, mode)
	}
	return seg
}

func formatDistance(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%.1f km", m/1000)
	}
	return fmt.Sprintf("%d m", int(math.Round(m)))
}
