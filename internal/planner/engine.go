package planner

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"tripnav/internal/journey"
	"tripnav/internal/logging"
	"tripnav/internal/metrics"
)

const (
	// SnapRadiusMeters bounds how far an endpoint may move when snapped.
	SnapRadiusMeters = 75.0
	// StopsPerEndpoint caps nearby stops considered around each endpoint.
	StopsPerEndpoint = 3
	defaultParallel  = 9
)

var strategies = []journey.Strategy{
	journey.StrategyShortest,
	journey.StrategyCheapest,
	journey.StrategyBalanced,
}

// Plan is the outcome of a planning call. Fallback marks the direct-walk
// answer; Suggestion is meant for the traveler.
type Plan struct {
	Routes     []journey.Route
	Fallback   bool
	FromCache  bool
	Suggestion string
}

// Options wires an Engine. Locations, Cache and Metrics are optional.
type Options struct {
	Stops     journey.StopRepository
	Locations journey.LocationService
	Factory   *SegmentFactory
	Cache     *RouteCache
	Settings  journey.Settings
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	// MaxParallel bounds concurrent strategy computations; 0 means 9.
	MaxParallel int
}

// Engine is the route generation engine.
type Engine struct {
	stops       journey.StopRepository
	locations   journey.LocationService
	composer    *Composer
	cache       *RouteCache
	settings    journey.Settings
	logger      *slog.Logger
	metrics     *metrics.Collector
	maxParallel int
}

func NewEngine(opts Options) *Engine {
	p := opts.MaxParallel
	if p <= 0 {
		p = defaultParallel
	}
	return &Engine{
		stops:       opts.Stops,
		locations:   opts.Locations,
		composer:    NewComposer(opts.Factory),
		cache:       opts.Cache,
		settings:    opts.Settings,
		logger:      logging.OrDefault(opts.Logger).With(slog.String("component", "planner")),
		metrics:     opts.Metrics,
		maxParallel: p,
	}
}

type pairJob struct {
	start, end journey.Stop
	strategy   journey.Strategy
}

// GenerateRoutes returns deduplicated, ranked itineraries between two points.
// Collaborator failures degrade to cached results or a direct walk; the only
// error is cancellation of ctx.
func (e *Engine) GenerateRoutes(ctx context.Context, origin, destination journey.Location, maxAlternatives int) (Plan, error) {
	started := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.PlanDuration.Observe(time.Since(started).Seconds())
		}
	}()

	origin = e.snap(ctx, origin)
	destination = e.snap(ctx, destination)
	limit := e.limit(maxAlternatives)

	startStops, errStart := e.nearbyStops(ctx, origin)
	endStops, errEnd := e.nearbyStops(ctx, destination)
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	if errStart != nil && errEnd != nil {
		if cached, ok := e.cache.Get(origin, destination); ok {
			e.logger.Info("stop lookup unavailable, serving cached routes", slog.Int("count", len(cached)))
			return Plan{Routes: truncate(cached, limit), FromCache: true}, nil
		}
	}
	if len(startStops) == 0 || len(endStops) == 0 {
		return e.directWalk(ctx, origin, destination, "No transit stops were found nearby, so walking directly is the only option."), nil
	}

	candidates := e.fanOut(ctx, origin, destination, startStops, endStops)
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	candidates = Deduplicate(candidates)
	if len(candidates) == 0 {
		return e.directWalk(ctx, origin, destination, "No transit itinerary could be built between these stops; showing a walking route instead."), nil
	}

	ranked := truncate(Rank(candidates), limit)
	if e.metrics != nil {
		e.metrics.PlanCandidates.Observe(float64(len(candidates)))
	}
	if err := e.cache.Put(origin, destination, ranked); err != nil {
		e.logger.Debug("route cache write failed", slog.String("error", err.Error()))
	}
	logging.LogOperation(e.logger, "routes_generated",
		slog.Int("candidates", len(candidates)),
		slog.Int("returned", len(ranked)),
		slog.Duration("duration", time.Since(started)))
	return Plan{Routes: ranked}, nil
}

func (e *Engine) fanOut(ctx context.Context, origin, destination journey.Location, startStops, endStops []journey.Stop) []journey.Route {
	var jobs []pairJob
	for _, s := range startStops {
		for _, t := range endStops {
			if s.ID == t.ID {
				continue
			}
			for _, st := range strategies {
				jobs = append(jobs, pairJob{start: s, end: t, strategy: st})
			}
		}
	}

	results := make([]*journey.Route, len(jobs))
	var g errgroup.Group
	g.SetLimit(e.maxParallel)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			r, err := e.composer.Compose(ctx, job.strategy, origin, destination, job.start, job.end)
			if err != nil {
				e.logger.Warn("strategy failed",
					slog.String("strategy", string(job.strategy)),
					slog.String("from_stop", job.start.ID),
					slog.String("to_stop", job.end.ID),
					slog.String("error", err.Error()))
				if e.metrics != nil {
					e.metrics.StrategyFailures.WithLabelValues(string(job.strategy)).Inc()
				}
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	out := make([]journey.Route, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (e *Engine) directWalk(ctx context.Context, origin, destination journey.Location, suggestion string) Plan {
	if e.metrics != nil {
		e.metrics.FallbackPlans.Inc()
	}
	e.logger.Info("falling back to direct walk", slog.String("origin", origin.String()), slog.String("destination", destination.String()))
	return Plan{
		Routes:     Rank([]journey.Route{e.composer.DirectWalk(ctx, origin, destination)}),
		Fallback:   true,
		Suggestion: suggestion,
	}
}

func (e *Engine) nearbyStops(ctx context.Context, loc journey.Location) ([]journey.Stop, error) {
	if e.stops == nil {
		return nil, nil
	}
	found, err := e.stops.FindNearby(ctx, loc, e.settings.NearbyStopRadiusMeters)
	if err != nil {
		logging.LogError(e.logger, "nearby stop lookup failed", err, slog.String("location", loc.String()))
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool {
		return loc.DistanceTo(found[i].Location()) < loc.DistanceTo(found[j].Location())
	})
	if len(found) > StopsPerEndpoint {
		found = found[:StopsPerEndpoint]
	}
	return found, nil
}

func (e *Engine) snap(ctx context.Context, loc journey.Location) journey.Location {
	if e.locations == nil {
		return loc
	}
	snapped, err := e.locations.SnapToNearestNode(ctx, loc)
	if err != nil || loc.DistanceTo(snapped) > SnapRadiusMeters {
		return loc
	}
	if snapped.Latitude == loc.Latitude && snapped.Longitude == loc.Longitude {
		return loc
	}
	snapped.IsFiltered = true
	return snapped
}

func (e *Engine) limit(maxAlternatives int) int {
	limit := e.settings.MaxRouteCandidates
	if maxAlternatives > 0 && (limit <= 0 || maxAlternatives < limit) {
		limit = maxAlternatives
	}
	return limit
}

func truncate(routes []journey.Route, limit int) []journey.Route {
	if limit > 0 && len(routes) > limit {
		return routes[:limit]
	}
	return routes
}
