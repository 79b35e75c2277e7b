package planner

import (
	"context"
	"fmt"
	"time"

	"tripnav/internal/journey"
)

const (
	// WalkOnlyMeters is the straight-line distance under which the cheapest
	// strategy walks the whole way.
	WalkOnlyMeters = 2000.0
	// KekeFeederMeters is the access distance above which the balanced
	// strategy rides a keke to the first stop.
	KekeFeederMeters = 800.0
)

// Composer assembles the three itinerary strategies for one stop pair.
type Composer struct {
	factory *SegmentFactory
	now     func() time.Time
}

func NewComposer(factory *SegmentFactory) *Composer {
	return &Composer{factory: factory, now: time.Now}
}

// Compose dispatches on the strategy tag.
func (c *Composer) Compose(ctx context.Context, strategy journey.Strategy, origin, destination journey.Location, start, end journey.Stop) (journey.Route, error) {
	if err := ctx.Err(); err != nil {
		return journey.Route{}, err
	}
	switch strategy {
	case journey.StrategyShortest:
		return c.Shortest(ctx, origin, destination, start, end)
	case journey.StrategyCheapest:
		return c.Cheapest(ctx, origin, destination, start, end)
	case journey.StrategyBalanced:
		return c.Balanced(ctx, origin, destination, start, end)
	default:
		return journey.Route{}, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// Shortest is walk, bus, walk.
func (c *Composer) Shortest(ctx context.Context, origin, destination journey.Location, start, end journey.Stop) (journey.Route, error) {
	return c.walkRideWalk(ctx, journey.StrategyShortest, origin, destination, start, end, journey.ModeBus)
}

// Cheapest walks everything below WalkOnlyMeters, otherwise rides the
// cheapest line-haul mode between walks.
func (c *Composer) Cheapest(ctx context.Context, origin, destination journey.Location, start, end journey.Stop) (journey.Route, error) {
	if origin.DistanceTo(destination) < WalkOnlyMeters {
		walk := c.factory.Walking(ctx, journey.PointStop("Origin", origin), journey.PointStop("Destination", destination))
		return Build([]journey.Segment{walk}, journey.StrategyCheapest, c.now()), nil
	}
	mode := c.factory.Catalog().CheapestTransit(start.Location().DistanceTo(end.Location()))
	return c.walkRideWalk(ctx, journey.StrategyCheapest, origin, destination, start, end, mode)
}

// Balanced walks to the first stop unless it is beyond KekeFeederMeters, in
// which case a keke covers the access leg.
func (c *Composer) Balanced(ctx context.Context, origin, destination journey.Location, start, end journey.Stop) (journey.Route, error) {
	from := journey.PointStop("Origin", origin)
	to := journey.PointStop("Destination", destination)

	var access journey.Segment
	if origin.DistanceTo(start.Location()) > KekeFeederMeters {
		seg, err := c.factory.Transit(ctx, from, start, journey.ModeKeke)
		if err != nil {
			seg = c.factory.Walking(ctx, from, start)
		}
		access = seg
	} else {
		access = c.factory.Walking(ctx, from, start)
	}
	main, err := c.factory.Transit(ctx, start, end, journey.ModeBus)
	if err != nil {
		return journey.Route{}, err
	}
	egress := c.factory.Walking(ctx, end, to)
	return Build([]journey.Segment{access, main, egress}, journey.StrategyBalanced, c.now()), nil
}

// DirectWalk is the single-leg itinerary used when no transit is possible.
func (c *Composer) DirectWalk(ctx context.Context, origin, destination journey.Location) journey.Route {
	seg := c.factory.Walking(ctx, journey.PointStop("Origin", origin), journey.PointStop("Destination", destination))
	return Build([]journey.Segment{seg}, journey.StrategyDirectWalk, c.now())
}

func (c *Composer) walkRideWalk(ctx context.Context, strategy journey.Strategy, origin, destination journey.Location, start, end journey.Stop, mode journey.ModeType) (journey.Route, error) {
	from := journey.PointStop("Origin", origin)
	to := journey.PointStop("Destination", destination)
	ride, err := c.factory.Transit(ctx, start, end, mode)
	if err != nil {
		return journey.Route{}, err
	}
	return Build([]journey.Segment{
		c.factory.Walking(ctx, from, start),
		ride,
		c.factory.Walking(ctx, end, to),
	}, strategy, c.now()), nil
}
