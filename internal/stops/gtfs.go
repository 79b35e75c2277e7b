package stops

import (
	"fmt"
	"os"

	"github.com/jamespfennell/gtfs"

	"tripnav/internal/journey"
)

// LoadGTFS parses a static GTFS zip and returns its stops.
func LoadGTFS(path string) ([]journey.Stop, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	staticData, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return FromStatic(staticData), nil
}

// FromStatic converts parsed GTFS stops. Entries without coordinates, such
// as generic nodes, are skipped. The zone id becomes the stop area.
func FromStatic(static *gtfs.Static) []journey.Stop {
	if static == nil {
		return nil
	}
	out := make([]journey.Stop, 0, len(static.Stops))
	for _, s := range static.Stops {
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		name := s.Name
		if name == "" {
			name = s.Code
		}
		out = append(out, journey.Stop{
			ID:        s.Id,
			Name:      name,
			Latitude:  *s.Latitude,
			Longitude: *s.Longitude,
			Area:      s.ZoneId,
		})
	}
	return out
}
