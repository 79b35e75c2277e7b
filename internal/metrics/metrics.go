package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveTrips prometheus.Gauge

	TripsStarted   prometheus.Counter
	TripsCompleted prometheus.Counter
	TripsCancelled prometheus.Counter

	LocationUpdates   prometheus.Counter
	MilestonesReached prometheus.Counter
	DeviationChecks   *prometheus.CounterVec // severity label: none|minor|moderate|severe
	Reroutes          *prometheus.CounterVec // trigger label: auto|manual; outcome label: applied|proposed|declined|failed

	PlanDuration     prometheus.Histogram
	PlanCandidates   prometheus.Histogram
	StrategyFailures *prometheus.CounterVec // strategy label
	FallbackPlans    prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	LocationInterval  prometheus.Gauge // seconds
	DeviationInterval prometheus.Gauge // seconds
}

func NewCollector(locationInterval, deviationInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripnav_active_trips",
			Help: "1 while a trip is in progress or paused.",
		}),
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripnav_trips_started_total",
			Help: "Total trips started.",
		}),
		TripsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripnav_trips_completed_total",
			Help: "Total trips completed.",
		}),
		TripsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripnav_trips_cancelled_total",
			Help: "Total trips cancelled.",
		}),
		LocationUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripnav_location_updates_total",
			Help: "Location updates applied to the active trip.",
		}),
		MilestonesReached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripnav_milestones_reached_total",
			Help: "Milestones marked reached.",
		}),
		DeviationChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripnav_deviation_checks_total",
			Help: "Deviation checks by resulting severity.",
		}, []string{"severity"}),
		Reroutes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripnav_reroutes_total",
			Help: "Reroute outcomes by trigger.",
		}, []string{"trigger", "outcome"}),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripnav_plan_duration_seconds",
			Help:    "Duration of route generation calls.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PlanCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripnav_plan_candidates",
			Help:    "Itineraries surviving deduplication per planning call.",
			Buckets: prometheus.LinearBuckets(0, 3, 10),
		}),
		StrategyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripnav_strategy_failures_total",
			Help: "Per-pair strategy computations that failed.",
		}, []string{"strategy"}),
		FallbackPlans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripnav_fallback_plans_total",
			Help: "Planning calls answered with the direct walking itinerary.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripnav_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripnav_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripnav_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripnav_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		LocationInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripnav_location_interval_seconds",
			Help: "Location poll interval in seconds.",
		}),
		DeviationInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripnav_deviation_interval_seconds",
			Help: "Deviation check interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.ActiveTrips,
		c.TripsStarted, c.TripsCompleted, c.TripsCancelled,
		c.LocationUpdates, c.MilestonesReached, c.DeviationChecks, c.Reroutes,
		c.PlanDuration, c.PlanCandidates, c.StrategyFailures, c.FallbackPlans,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.LocationInterval, c.DeviationInterval,
	)

	c.LocationInterval.Set(locationInterval.Seconds())
	c.DeviationInterval.Set(deviationInterval.Seconds())

	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}
