package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripnav/internal/config"
	"tripnav/internal/db"
	"tripnav/internal/fare"
	"tripnav/internal/journey"
	"tripnav/internal/logging"
	"tripnav/internal/metrics"
	"tripnav/internal/notify"
	"tripnav/internal/orchestrator"
	"tripnav/internal/publisher"
	"tripnav/internal/routing"
	"tripnav/internal/sim"
	"tripnav/internal/stops"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		logging.NewStructuredLogger(os.Stderr, slog.LevelInfo).Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.NewStructuredLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logging.LogError(logger, "tripnav failed", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Origin == nil || cfg.Destination == nil {
		return errors.New("ORIGIN and DESTINATION must be set as lat,lon")
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.Settings.LocationUpdateInterval, cfg.Settings.DeviationCheckInterval)
		srv := mcol.Serve(cfg.MetricsAddr, logger)
		defer func() {
			// Shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	repo, closeRepo, err := openStops(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	notifiers := []journey.Notifier{notify.NewLog(logger)}
	var events orchestrator.EventPublisher
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol), logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		events = pub
		notifiers = append(notifiers, publisher.NewNotifier(pub, cfg.UserID))
	}

	traveler := sim.NewTraveler(journey.Route{}, sim.Options{
		Interval:        cfg.Settings.LocationUpdateInterval,
		SpeedMultiplier: cfg.SpeedMultiplier,
		Logger:          logger,
	})

	orch, err := orchestrator.New(orchestrator.Options{
		Stops:     repo,
		Locations: traveler,
		Routing:   routing.NewGreatCircle(cfg.Catalog),
		Fares:     fare.New(),
		Notifier:  notify.NewMulti(logger, notifiers...),
		Catalog:   cfg.Catalog,
		Settings:  cfg.Settings,
		Publisher: events,
		Logger:    logger,
		Metrics:   mcol,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	plan, err := orch.PlanTrip(ctx, *cfg.Origin, *cfg.Destination, cfg.Settings.MaxRouteCandidates)
	if err != nil {
		return err
	}
	if plan.Suggestion != "" {
		logger.Info("planner suggestion", slog.String("suggestion", plan.Suggestion))
	}
	for i, r := range plan.Routes {
		logger.Info("candidate route",
			slog.Int("rank", i+1),
			slog.String("strategy", string(r.Strategy)),
			slog.Int("legs", len(r.Segments)),
			slog.Float64("distance_m", r.TotalDistance),
			slog.Float64("time_min", r.TotalTime),
			slog.Float64("cost", r.TotalCost),
			slog.Float64("score", r.Score.Balanced))
	}
	if len(plan.Routes) == 0 {
		return errors.New("no route found")
	}
	route := plan.Routes[0]

	traveler.Load(route, detourFor(route, cfg.DetourMeters))
	unsubscribe := orch.Subscribe(func(ev journey.Event) {
		if ev.Type == journey.EventReroute && ev.Action == journey.ActionApplied && ev.State != nil {
			st := ev.State
			remaining := st.Route
			remaining.Segments = st.Route.Segments[st.CurrentSegmentIndex:]
			traveler.Follow(remaining)
		}
	})
	defer unsubscribe()

	st, err := orch.StartTrip(ctx, cfg.UserID, route, *cfg.Destination, cfg.Origin)
	if err != nil {
		return err
	}
	logger.Info("trip started", slog.String("trip_id", st.TripID), slog.String("route_id", route.ID))

	for {
		select {
		case <-ctx.Done():
			if _, err := orch.CancelTrip("interrupted"); err != nil && !errors.Is(err, orchestrator.ErrNoActiveTrip) {
				logging.LogError(logger, "cancel trip", err)
			}
			return nil
		case ev, ok := <-orch.Events():
			if !ok {
				return nil
			}
			logEvent(logger, ev)
			switch {
			case ev.Type == journey.EventReroute && ev.Action == journey.ActionProposed:
				// The demo traveler always takes the proposed route.
				orch.AcceptReroute(ctx)
			case ev.Type == journey.EventStatusChange && (ev.Action == journey.ActionCompleted || ev.Action == journey.ActionCancelled):
				return nil
			}
		}
	}
}

// openStops picks the stop repository: Postgres when a database is
// configured, else a GTFS feed loaded into memory, else an empty store.
func openStops(ctx context.Context, cfg *config.Config) (journey.StopRepository, func(), error) {
	logger := logging.FromContext(ctx)
	switch {
	case cfg.DatabaseURL != "":
		sqlDB, err := db.OpenForCity(ctx, cfg.DatabaseURL, cfg.City)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		store, err := db.NewStopStore(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		logger.Info("using postgres stop store", slog.String("city", cfg.City))
		return store, func() { sqlDB.Close() }, nil
	case cfg.GTFSPath != "":
		list, err := stops.LoadGTFS(cfg.GTFSPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("loaded gtfs stops", slog.String("path", cfg.GTFSPath), slog.Int("stops", len(list)))
		return stops.NewMemory(list...), func() {}, nil
	default:
		logger.Warn("no stop source configured; plans fall back to walking")
		return stops.NewMemory(), func() {}, nil
	}
}

// detourFor pushes the traveler sideways over the middle of the route.
func detourFor(route journey.Route, meters float64) *sim.Detour {
	if meters <= 0 || route.TotalDistance <= 0 {
		return nil
	}
	return &sim.Detour{
		FromMeters:   route.TotalDistance * 0.3,
		ToMeters:     route.TotalDistance * 0.7,
		OffsetMeters: meters,
	}
}

func logEvent(logger *slog.Logger, ev journey.Event) {
	attrs := []any{
		slog.String("type", string(ev.Type)),
		slog.String("action", ev.Action),
		slog.String("trip_id", ev.TripID),
	}
	if ev.Milestone != nil {
		attrs = append(attrs, slog.String("stop", ev.Milestone.StopName))
	}
	if ev.Deviation != nil {
		attrs = append(attrs,
			slog.Float64("distance_m", ev.Deviation.DistanceFromRoute),
			slog.String("severity", string(ev.Deviation.Severity)))
	}
	if ev.Reason != "" {
		attrs = append(attrs, slog.String("reason", ev.Reason))
	}
	logger.Info("trip event", attrs...)
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
