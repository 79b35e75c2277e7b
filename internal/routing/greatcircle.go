// Package routing provides a Routing Service that needs no road network:
// distance is great-circle, duration comes from the mode's average speed.
package routing

import (
	"context"
	"errors"
	"fmt"

	"tripnav/internal/geo"
	"tripnav/internal/journey"
)

// GreatCircle answers every lookup from the catalog speeds.
type GreatCircle struct {
	catalog journey.Catalog
}

func NewGreatCircle(catalog journey.Catalog) *GreatCircle {
	return &GreatCircle{catalog: catalog}
}

func (g *GreatCircle) CalculateRoute(ctx context.Context, from, to journey.Location, mode journey.ModeType) (journey.RouteResult, error) {
	return g.CalculateMultiStopRoute(ctx, []journey.Location{from, to}, mode)
}

func (g *GreatCircle) CalculateMultiStopRoute(ctx context.Context, stops []journey.Location, mode journey.ModeType) (journey.RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return journey.RouteResult{}, err
	}
	if len(stops) < 2 {
		return journey.RouteResult{}, errors.New("at least two stops are required")
	}
	m, ok := g.catalog.Get(mode)
	if !ok || m.AvgSpeedKmh <= 0 {
		return journey.RouteResult{}, fmt.Errorf("mode %q not in catalog", mode)
	}
	pts := make([]geo.Point, len(stops))
	for i, s := range stops {
		pts[i] = s.Point()
	}
	cum := geo.CumulativeDistances(pts)
	dist := cum[len(cum)-1]
	return journey.RouteResult{
		DistanceMeters:  dist,
		DurationMinutes: dist / m.SpeedMetersPerSecond() / 60,
		Path:            append([]journey.Location(nil), stops...),
		Polyline:        geo.EncodePolyline(pts),
	}, nil
}
