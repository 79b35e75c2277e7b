package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tripnav/internal/journey"
	"tripnav/internal/logging"
)

type Config struct {
	DatabaseURL       string
	City              string
	GTFSPath          string
	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	MetricsAddr       string
	LogLevel          slog.Level

	ModesFile string
	Catalog   journey.Catalog
	Settings  journey.Settings

	// Demo run.
	SpeedMultiplier float64
	DetourMeters    float64
	Origin          *journey.Location
	Destination     *journey.Location
	UserID          string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	dsn, err := databaseURL()
	if err != nil {
		return nil, err
	}
	cfg.DatabaseURL = dsn
	// City name for dynamic DB resolution
	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))
	cfg.GTFSPath = os.Getenv("GTFS_PATH")

	// Empty NATS_URL disables event publication.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "tripnav")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"), false)

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.LogLevel = logging.ParseLevel(os.Getenv("LOG_LEVEL"))

	cfg.ModesFile = os.Getenv("MODES_FILE")
	if cfg.ModesFile != "" {
		cat, err := LoadCatalog(cfg.ModesFile)
		if err != nil {
			return nil, err
		}
		cfg.Catalog = cat
	} else {
		cfg.Catalog = journey.DefaultCatalog()
	}

	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	cfg.Settings = s

	if cfg.SpeedMultiplier, err = envFloat("SPEED_MULTIPLIER", 1.0, false); err != nil {
		return nil, err
	}
	if cfg.DetourMeters, err = envFloat("SIM_DETOUR_M", 0, true); err != nil {
		return nil, err
	}
	if cfg.Origin, err = envLocation("ORIGIN"); err != nil {
		return nil, err
	}
	if cfg.Destination, err = envLocation("DESTINATION"); err != nil {
		return nil, err
	}
	cfg.UserID = getenvDefault("USER_ID", "demo")

	return cfg, nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds from PG* vars. It
// returns "" when no database is configured.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	db := os.Getenv("PGDATABASE")
	host := os.Getenv("PGHOST")
	// If CITY is provided, default base DB to 'postgres' when PGDATABASE is not set.
	if db == "" && firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME")) != "" {
		db = "postgres"
	}
	if db == "" && host == "" {
		return "", nil
	}
	if db == "" {
		return "", errors.New("PGDATABASE must be set when PGHOST is (set PGDATABASE=postgres when using CITY)")
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func loadSettings() (journey.Settings, error) {
	s := journey.DefaultSettings()
	var err error

	if s.NearbyStopRadiusMeters, err = envFloat("NEARBY_STOP_RADIUS_M", s.NearbyStopRadiusMeters, false); err != nil {
		return s, err
	}
	if s.MaxRouteCandidates, err = envInt("MAX_ROUTE_CANDIDATES", s.MaxRouteCandidates, false); err != nil {
		return s, err
	}
	if s.LocationUpdateInterval, err = envMillis("LOCATION_UPDATE_INTERVAL_MS", s.LocationUpdateInterval); err != nil {
		return s, err
	}
	if s.MilestoneProximityMeters, err = envFloat("MILESTONE_PROXIMITY_M", s.MilestoneProximityMeters, false); err != nil {
		return s, err
	}
	if s.DeviationThresholdMeters, err = envFloat("DEVIATION_THRESHOLD_M", s.DeviationThresholdMeters, false); err != nil {
		return s, err
	}
	s.AutoRerouteEnabled = parseBool(os.Getenv("AUTO_REROUTE"), s.AutoRerouteEnabled)
	if s.MaxRerouteAttempts, err = envInt("MAX_REROUTE_ATTEMPTS", s.MaxRerouteAttempts, true); err != nil {
		return s, err
	}
	if s.DeviationCheckInterval, err = envMillis("DEVIATION_CHECK_INTERVAL_MS", s.DeviationCheckInterval); err != nil {
		return s, err
	}
	if s.ArrivalRadiusMeters, err = envFloat("ARRIVAL_RADIUS_M", s.ArrivalRadiusMeters, false); err != nil {
		return s, err
	}
	s.DeviationUseProjection = parseBool(os.Getenv("DEVIATION_PROJECTION"), s.DeviationUseProjection)
	if s.RouteCacheSize, err = envInt("ROUTE_CACHE_SIZE", s.RouteCacheSize, true); err != nil {
		return s, err
	}
	ttlMin, err := envInt("ROUTE_CACHE_TTL_MIN", int(s.RouteCacheTTL/time.Minute), true)
	if err != nil {
		return s, err
	}
	s.RouteCacheTTL = time.Duration(ttlMin) * time.Minute

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func envFloat(key string, def float64, allowZero bool) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 || (f == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func envInt(key string, def int, allowZero bool) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 || (n == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envMillis(key string, def time.Duration) (time.Duration, error) {
	ms, err := envInt(key, int(def/time.Millisecond), false)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// envLocation parses "lat,lon"; unset yields nil.
func envLocation(key string) (*journey.Location, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil, nil
	}
	loc, err := ParseLatLon(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &loc, nil
}

// ParseLatLon parses "lat,lon" in decimal degrees.
func ParseLatLon(s string) (journey.Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return journey.Location{}, fmt.Errorf("want lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return journey.Location{}, fmt.Errorf("bad latitude in %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lon < -180 || lon > 180 {
		return journey.Location{}, fmt.Errorf("bad longitude in %q", s)
	}
	return journey.Location{Latitude: lat, Longitude: lon}, nil
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return def
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
