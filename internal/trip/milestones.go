package trip

import (
	"fmt"
	"time"

	"tripnav/internal/journey"
)

// BuildMilestones derives the checkpoint list for route: a departure at the
// first leg's origin, already reached, then one checkpoint per leg
// destination. Legs before startIndex are marked skipped. Estimated arrivals
// accumulate leg times from start.
func BuildMilestones(route journey.Route, startIndex int, start time.Time) []journey.Milestone {
	if len(route.Segments) == 0 {
		return nil
	}
	startIndex = clampIndex(startIndex, len(route.Segments))

	first := route.Segments[0].From
	out := make([]journey.Milestone, 0, len(route.Segments)+1)
	out = append(out, journey.Milestone{
		ID:               "ms-departure",
		SegmentIndex:     0,
		StopID:           first.ID,
		StopName:         first.Name,
		Location:         first.Location(),
		Type:             journey.MilestoneDeparture,
		EstimatedArrival: start,
		Reached:          true,
		ReachedAt:        start,
	})

	elapsed := 0.0
	last := len(route.Segments) - 1
	for i, seg := range route.Segments {
		typ := journey.MilestoneTransfer
		if i == last {
			typ = journey.MilestoneArrival
		}
		m := journey.Milestone{
			ID:           fmt.Sprintf("ms-%d", i),
			SegmentIndex: i,
			StopID:       seg.To.ID,
			StopName:     seg.To.Name,
			Location:     seg.To.Location(),
			Type:         typ,
		}
		if i < startIndex {
			m.Skipped = true
		} else {
			elapsed += seg.EstimatedTimeMinutes
			m.EstimatedArrival = start.Add(time.Duration(elapsed * float64(time.Minute)))
		}
		out = append(out, m)
	}
	return out
}

// NextMilestone returns the index of the first checkpoint that is neither
// reached nor skipped, or -1.
func NextMilestone(ms []journey.Milestone) int {
	for i, m := range ms {
		if !m.Reached && !m.Skipped {
			return i
		}
	}
	return -1
}

// MilestoneHit is one approaching or reached transition found by Evaluate.
type MilestoneHit struct {
	Action    string
	Milestone journey.Milestone
	Distance  float64
}

// Tracker applies proximity rules to the next pending milestone.
type Tracker struct {
	// ProximityMeters is the reached radius; approaching fires at twice it.
	ProximityMeters float64
}

// Evaluate mutates s in place and reports what changed. At most one milestone
// is considered per update. The leg index only ever moves forward.
func (t Tracker) Evaluate(s *journey.TripState, loc journey.Location, now time.Time) []MilestoneHit {
	i := NextMilestone(s.Milestones)
	if i < 0 {
		return nil
	}
	m := &s.Milestones[i]
	d := loc.DistanceTo(m.Location)

	var hits []MilestoneHit
	if d <= 2*t.ProximityMeters && !m.Notified {
		m.Notified = true
		hits = append(hits, MilestoneHit{Action: journey.ActionApproaching, Milestone: *m, Distance: d})
	}
	if d <= t.ProximityMeters {
		m.Reached = true
		m.ReachedAt = now
		advance(s, m.SegmentIndex+1)
		hits = append(hits, MilestoneHit{Action: journey.ActionReached, Milestone: *m, Distance: d})
	}
	return hits
}

func advance(s *journey.TripState, idx int) {
	idx = clampIndex(idx, len(s.Route.Segments))
	if idx > s.CurrentSegmentIndex {
		s.CurrentSegmentIndex = idx
	}
}

// NearestStartLeg picks the leg the traveler should begin on: leg 0 when its
// origin is within radius, otherwise the leg whose origin is closest.
func NearestStartLeg(route journey.Route, loc journey.Location, radius float64) int {
	if len(route.Segments) == 0 {
		return 0
	}
	if loc.DistanceTo(route.Segments[0].From.Location()) <= radius {
		return 0
	}
	best, bestDist := 0, -1.0
	for i, seg := range route.Segments {
		d := loc.DistanceTo(seg.From.Location())
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// CompletedSegments counts legs whose destination milestone was reached.
func CompletedSegments(s journey.TripState) int {
	n := 0
	for _, m := range s.Milestones {
		if m.Type != journey.MilestoneDeparture && m.Reached {
			n++
		}
	}
	return n
}
