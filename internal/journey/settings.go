package journey

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings is the tunable surface of the planner, tracker and rerouter.
type Settings struct {
	NearbyStopRadiusMeters   float64       `validate:"gt=0"`
	MaxRouteCandidates       int           `validate:"gt=0"`
	LocationUpdateInterval   time.Duration `validate:"gt=0"`
	MilestoneProximityMeters float64       `validate:"gt=0"`
	DeviationThresholdMeters float64       `validate:"gt=0"`
	AutoRerouteEnabled       bool
	MaxRerouteAttempts       int           `validate:"gte=0"`
	DeviationCheckInterval   time.Duration `validate:"gt=0"`
	ArrivalRadiusMeters      float64       `validate:"gt=0"`
	DeviationUseProjection   bool
	RouteCacheSize           int           `validate:"gte=0"`
	RouteCacheTTL            time.Duration `validate:"gte=0"`
}

// DefaultSettings mirrors the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		NearbyStopRadiusMeters:   500,
		MaxRouteCandidates:       5,
		LocationUpdateInterval:   5 * time.Second,
		MilestoneProximityMeters: 50,
		DeviationThresholdMeters: 100,
		AutoRerouteEnabled:       true,
		MaxRerouteAttempts:       3,
		DeviationCheckInterval:   10 * time.Second,
		ArrivalRadiusMeters:      100,
		RouteCacheSize:           256,
		RouteCacheTTL:            24 * time.Hour,
	}
}

// Validate checks ranges with the struct tags above.
func (s Settings) Validate() error {
	return validator.New().Struct(s)
}
