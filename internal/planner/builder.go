package planner

import (
	"math"
	"time"

	"github.com/google/uuid"

	"tripnav/internal/journey"
)

const (
	// arrivalSigmaRatio is the assumed duration variability as a share of total time.
	arrivalSigmaRatio = 0.10
	// arrivalZScore is the one-sided 85% z-score.
	arrivalZScore     = 1.44
	arrivalConfidence = 0.85
)

// Build assembles legs into an itinerary with summed totals and an arrival
// window. Scores are left zero until Rank runs.
func Build(segments []journey.Segment, strategy journey.Strategy, now time.Time) journey.Route {
	r := journey.Route{
		ID:          uuid.NewString(),
		Segments:    append([]journey.Segment(nil), segments...),
		Strategy:    strategy,
		GeneratedAt: now,
	}
	for _, s := range segments {
		r.TotalDistance += s.DistanceMeters
		r.TotalTime += s.EstimatedTimeMinutes
		r.TotalCost += s.Cost
	}
	w := ArrivalWindow(r.TotalTime)
	r.ArrivalWindow = &w
	return r
}

// ArrivalWindow is [t-1.44σ, t+1.44σ] with σ=10% of t, floored at one
// minute and at least one minute wide.
func ArrivalWindow(totalMinutes float64) journey.ArrivalWindow {
	delta := arrivalZScore * arrivalSigmaRatio * totalMinutes
	lo := math.Max(1, math.Round(totalMinutes-delta))
	hi := math.Max(lo+1, math.Round(totalMinutes+delta))
	return journey.ArrivalWindow{MinMinutes: lo, MaxMinutes: hi, Confidence: arrivalConfidence}
}
