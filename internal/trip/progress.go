package trip

import (
	"math"

	"tripnav/internal/journey"
)

// ComputeProgress derives the read-only progress view of s. Remaining
// distance is the straight line to the next checkpoint plus every later leg;
// remaining time scales the current leg's estimate by the share still to go.
func ComputeProgress(s journey.TripState) journey.Progress {
	p := journey.Progress{TotalSegments: len(s.Route.Segments)}
	for _, m := range s.Milestones {
		if m.Type != journey.MilestoneDeparture && (m.Reached || m.Skipped) {
			p.CompletedSegments++
		}
	}

	next := NextMilestone(s.Milestones)
	if next < 0 || p.TotalSegments == 0 {
		p.Percentage = 100
		return p
	}
	m := s.Milestones[next]
	p.CurrentMilestone = &m

	seg := s.Route.Segments[m.SegmentIndex]
	inLeg := s.CurrentLocation.DistanceTo(m.Location)
	p.RemainingDistance = inLeg
	if seg.DistanceMeters > 0 {
		p.RemainingTime = math.Min(inLeg/seg.DistanceMeters, 1) * seg.EstimatedTimeMinutes
	}
	for _, later := range s.Route.Segments[m.SegmentIndex+1:] {
		p.RemainingDistance += later.DistanceMeters
		p.RemainingTime += later.EstimatedTimeMinutes
	}

	total := s.Route.TotalDistance
	if total <= 0 {
		p.Percentage = 100
		return p
	}
	p.Percentage = math.Max(0, math.Min(100, (total-p.RemainingDistance)/total*100))
	return p
}
