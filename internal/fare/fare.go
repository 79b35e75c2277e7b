// Package fare prices legs from distance and mode alone.
package fare

import (
	"math"

	"tripnav/internal/journey"
)

// Calculator implements journey.FareCalculator: base + perKm * km, rounded.
// Walking is always free.
type Calculator struct{}

func New() Calculator { return Calculator{} }

func (Calculator) CalculateFare(distanceMeters float64, mode journey.TransportMode) float64 {
	if mode.Type == journey.ModeWalk || distanceMeters <= 0 {
		return 0
	}
	return math.Round(mode.BaseRate + mode.PerKmRate*distanceMeters/1000)
}

func (c Calculator) CalculateSegmentFare(seg journey.Segment) float64 {
	return c.CalculateFare(seg.DistanceMeters, seg.Mode)
}

func (c Calculator) EstimateTotalFare(r journey.Route) float64 {
	total := 0.0
	for _, s := range r.Segments {
		total += c.CalculateSegmentFare(s)
	}
	return total
}
