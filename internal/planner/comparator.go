package planner

import (
	"sort"

	"tripnav/internal/journey"
)

const (
	timeWeight = 0.6
	costWeight = 0.4
)

// Rank scores every itinerary relative to the set and returns a copy sorted
// by balanced score, best first. Ties keep their input order.
func Rank(routes []journey.Route) []journey.Route {
	out := make([]journey.Route, len(routes))
	copy(out, routes)
	if len(out) == 0 {
		return out
	}
	times := make([]float64, len(out))
	costs := make([]float64, len(out))
	for i, r := range out {
		times[i] = r.TotalTime
		costs[i] = r.TotalCost
	}
	timeScores := normalizeInverse(times)
	costScores := normalizeInverse(costs)
	for i := range out {
		out[i].Score = journey.RankingScore{
			Shortest: timeScores[i],
			Cheapest: costScores[i],
			Balanced: timeWeight*timeScores[i] + costWeight*costScores[i],
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Balanced > out[j].Score.Balanced
	})
	return out
}

// normalizeInverse maps the minimum to 100 and the maximum to 0. A set with
// no spread scores 100 everywhere.
func normalizeInverse(values []float64) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if hi == lo {
			out[i] = 100
			continue
		}
		out[i] = (hi - v) / (hi - lo) * 100
	}
	return out
}

// FindFastest returns the itinerary with the lowest total time.
func FindFastest(routes []journey.Route) (journey.Route, bool) {
	return reduce(routes, func(a, b journey.Route) bool { return a.TotalTime < b.TotalTime })
}

// FindCheapest returns the itinerary with the lowest total cost.
func FindCheapest(routes []journey.Route) (journey.Route, bool) {
	return reduce(routes, func(a, b journey.Route) bool { return a.TotalCost < b.TotalCost })
}

// FindMostBalanced returns the itinerary with the highest balanced score.
func FindMostBalanced(routes []journey.Route) (journey.Route, bool) {
	return reduce(routes, func(a, b journey.Route) bool { return a.Score.Balanced > b.Score.Balanced })
}

func reduce(routes []journey.Route, better func(a, b journey.Route) bool) (journey.Route, bool) {
	if len(routes) == 0 {
		return journey.Route{}, false
	}
	best := routes[0]
	for _, r := range routes[1:] {
		if better(r, best) {
			best = r
		}
	}
	return best, true
}

// Deduplicate keeps the first itinerary of every leg signature.
func Deduplicate(routes []journey.Route) []journey.Route {
	seen := make(map[string]struct{}, len(routes))
	out := make([]journey.Route, 0, len(routes))
	for _, r := range routes {
		sig := r.Signature()
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, r)
	}
	return out
}
