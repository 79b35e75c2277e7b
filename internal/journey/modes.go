package journey

// ModeType enumerates the transport modes a leg can use.
type ModeType string

const (
	ModeWalk  ModeType = "walk"
	ModeBus   ModeType = "bus"
	ModeKeke  ModeType = "keke"
	ModeTaxi  ModeType = "taxi"
	ModeTrain ModeType = "train"
	ModeBike  ModeType = "bike"
)

// TransportMode is a catalog entry. Rates are in the local currency unit.
type TransportMode struct {
	Type               ModeType `json:"type" yaml:"type" validate:"required,oneof=walk bus keke taxi train bike"`
	Name               string   `json:"name" yaml:"name" validate:"required"`
	AvailabilityFactor float64  `json:"availabilityFactor" yaml:"availabilityFactor" validate:"gte=0,lte=1"`
	BaseRate           float64  `json:"baseRate" yaml:"baseRate" validate:"gte=0"`
	PerKmRate          float64  `json:"perKmRate" yaml:"perKmRate" validate:"gte=0"`
	AvgSpeedKmh        float64  `json:"avgSpeedKmh" yaml:"avgSpeedKmh" validate:"gt=0"`
}

// SpeedMetersPerSecond converts the catalog speed.
func (m TransportMode) SpeedMetersPerSecond() float64 { return m.AvgSpeedKmh / 3.6 }

// Catalog is the static, read-only set of modes available in a deployment.
type Catalog map[ModeType]TransportMode

// DefaultCatalog is tuned for Lagos. Walking is 1.4 m/s.
func DefaultCatalog() Catalog {
	return Catalog{
		ModeWalk:  {Type: ModeWalk, Name: "Walking", AvailabilityFactor: 1, AvgSpeedKmh: 5.04},
		ModeBus:   {Type: ModeBus, Name: "Bus (Danfo/BRT)", AvailabilityFactor: 0.9, BaseRate: 100, PerKmRate: 30, AvgSpeedKmh: 25},
		ModeKeke:  {Type: ModeKeke, Name: "Keke", AvailabilityFactor: 0.8, BaseRate: 100, PerKmRate: 80, AvgSpeedKmh: 18},
		ModeTaxi:  {Type: ModeTaxi, Name: "Taxi", AvailabilityFactor: 0.6, BaseRate: 500, PerKmRate: 200, AvgSpeedKmh: 30},
		ModeBike:  {Type: ModeBike, Name: "Okada", AvailabilityFactor: 0.5, BaseRate: 200, PerKmRate: 100, AvgSpeedKmh: 28},
	}
}

// Get returns the mode or false when the deployment does not offer it.
func (c Catalog) Get(t ModeType) (TransportMode, bool) {
	m, ok := c[t]
	return m, ok
}

// Walking always resolves; a catalog without a walk entry falls back to 1.4 m/s.
func (c Catalog) Walking() TransportMode {
	if m, ok := c[ModeWalk]; ok {
		return m
	}
	return TransportMode{Type: ModeWalk, Name: "Walking", AvailabilityFactor: 1, AvgSpeedKmh: 5.04}
}

// CheapestTransit picks the line-haul mode (bus or train) with the lowest fare
// over distanceMeters. It falls back to bus.
func (c Catalog) CheapestTransit(distanceMeters float64) ModeType {
	best := ModeBus
	bestCost := -1.0
	for _, t := range []ModeType{ModeBus, ModeTrain} {
		m, ok := c[t]
		if !ok || m.AvailabilityFactor <= 0 {
			continue
		}
		cost := m.BaseRate + m.PerKmRate*distanceMeters/1000
		if bestCost < 0 || cost < bestCost {
			best, bestCost = t, cost
		}
	}
	return best
}
