package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tripnav/internal/journey"
)

// catalogFile is the MODES_FILE layout:
//
//	modes:
//	  - type: bus
//	    name: Bus (Danfo/BRT)
//	    availabilityFactor: 0.9
//	    baseRate: 100
//	    perKmRate: 30
//	    avgSpeedKmh: 25
type catalogFile struct {
	Modes []journey.TransportMode `yaml:"modes" validate:"required,min=1,dive"`
}

// LoadCatalog reads and validates a transport mode catalog.
func LoadCatalog(path string) (journey.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modes file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (journey.Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse modes file: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("invalid modes file: %w", err)
	}
	cat := make(journey.Catalog, len(f.Modes))
	for _, m := range f.Modes {
		if _, dup := cat[m.Type]; dup {
			return nil, fmt.Errorf("invalid modes file: duplicate mode %q", m.Type)
		}
		cat[m.Type] = m
	}
	return cat, nil
}
