package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"tripnav/internal/journey"
	"tripnav/internal/stops"
)

// layout is how the GTFS stops table stores coordinates: plain stop_lat and
// stop_lon columns, or a PostGIS stop_loc geography.
type layout int

const (
	layoutLatLon layout = iota
	layoutPostGIS
)

func (l layout) latExpr() string {
	if l == layoutPostGIS {
		return "ST_Y(stop_loc::geometry)"
	}
	return "stop_lat"
}

func (l layout) lonExpr() string {
	if l == layoutPostGIS {
		return "ST_X(stop_loc::geometry)"
	}
	return "stop_lon"
}

func (l layout) selectStops() string {
	return fmt.Sprintf(`SELECT stop_id, COALESCE(stop_name, ''), COALESCE(%s, 0), COALESCE(%s, 0), COALESCE(zone_id, '')
FROM stops`, l.latExpr(), l.lonExpr())
}

// nearbyQuery takes min lat, max lat, min lon, max lon. PostGIS tables use
// the spatial index through ST_DWithin and additionally take lat, lon, radius.
func (l layout) nearbyQuery() string {
	if l == layoutPostGIS {
		return l.selectStops() + `
WHERE ST_Y(stop_loc::geometry) BETWEEN $1 AND $2
  AND ST_X(stop_loc::geometry) BETWEEN $3 AND $4
  AND ST_DWithin(stop_loc, ST_SetSRID(ST_MakePoint($6, $5), 4326)::geography, $7)`
	}
	return l.selectStops() + `
WHERE stop_lat BETWEEN $1 AND $2 AND stop_lon BETWEEN $3 AND $4`
}

func (l layout) upsertQuery() string {
	if l == layoutPostGIS {
		return `INSERT INTO stops (stop_id, stop_name, stop_loc, zone_id)
VALUES ($1, $2, ST_SetSRID(ST_MakePoint($4, $3), 4326)::geography, $5)
ON CONFLICT (stop_id) DO UPDATE
SET stop_name = EXCLUDED.stop_name, stop_loc = EXCLUDED.stop_loc, zone_id = EXCLUDED.zone_id`
	}
	return `INSERT INTO stops (stop_id, stop_name, stop_lat, stop_lon, zone_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (stop_id) DO UPDATE
SET stop_name = EXCLUDED.stop_name, stop_lat = EXCLUDED.stop_lat, stop_lon = EXCLUDED.stop_lon, zone_id = EXCLUDED.zone_id`
}

func (l layout) updateQuery() string {
	if l == layoutPostGIS {
		return `UPDATE stops SET stop_name = $2, stop_loc = ST_SetSRID(ST_MakePoint($4, $3), 4326)::geography, zone_id = $5
WHERE stop_id = $1`
	}
	return `UPDATE stops SET stop_name = $2, stop_lat = $3, stop_lon = $4, zone_id = $5 WHERE stop_id = $1`
}

// StopStore is a journey.StopRepository over the GTFS stops table.
type StopStore struct {
	db     *sql.DB
	layout layout
}

// NewStopStore inspects the stops table to pick the coordinate layout.
func NewStopStore(ctx context.Context, db *sql.DB) (*StopStore, error) {
	cols, err := columnSet(ctx, db, "public", "stops", "stop_lat", "stop_lon", "stop_loc")
	if err != nil {
		return nil, fmt.Errorf("introspect stops columns: %w", err)
	}
	switch {
	case cols["stop_lat"] && cols["stop_lon"]:
		return &StopStore{db: db, layout: layoutLatLon}, nil
	case cols["stop_loc"]:
		return &StopStore{db: db, layout: layoutPostGIS}, nil
	}
	return nil, errors.New("stops table missing expected columns (stop_lat/lon or stop_loc)")
}

func (s *StopStore) FindNearby(ctx context.Context, loc journey.Location, radiusMeters float64) ([]journey.Stop, error) {
	minLat, maxLat, minLon, maxLon := stops.BoundingBox(loc, radiusMeters)
	args := []any{minLat, maxLat, minLon, maxLon}
	if s.layout == layoutPostGIS {
		args = append(args, loc.Latitude, loc.Longitude, radiusMeters)
	}
	found, err := s.query(ctx, s.layout.nearbyQuery(), args...)
	if err != nil {
		return nil, fmt.Errorf("query nearby stops: %w", err)
	}
	return withinRadius(found, loc, radiusMeters), nil
}

// withinRadius drops bounding-box corners and orders by distance.
func withinRadius(found []journey.Stop, loc journey.Location, radiusMeters float64) []journey.Stop {
	out := found[:0]
	for _, st := range found {
		if loc.DistanceTo(st.Location()) <= radiusMeters {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return loc.DistanceTo(out[i].Location()) < loc.DistanceTo(out[j].Location())
	})
	return out
}

func (s *StopStore) FindAll(ctx context.Context) ([]journey.Stop, error) {
	found, err := s.query(ctx, s.layout.selectStops()+" ORDER BY stop_id")
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	return found, nil
}

func (s *StopStore) FindByID(ctx context.Context, id string) (journey.Stop, error) {
	var st journey.Stop
	err := s.db.QueryRowContext(ctx, s.layout.selectStops()+" WHERE stop_id = $1", id).
		Scan(&st.ID, &st.Name, &st.Latitude, &st.Longitude, &st.Area)
	if errors.Is(err, sql.ErrNoRows) {
		return journey.Stop{}, fmt.Errorf("stop %q: %w", id, journey.ErrStopNotFound)
	}
	if err != nil {
		return journey.Stop{}, fmt.Errorf("query stop %q: %w", id, err)
	}
	return st, nil
}

func (s *StopStore) FindByArea(ctx context.Context, area string) ([]journey.Stop, error) {
	found, err := s.query(ctx, s.layout.selectStops()+" WHERE zone_id ILIKE $1 ORDER BY stop_id", area)
	if err != nil {
		return nil, fmt.Errorf("query stops by area: %w", err)
	}
	return found, nil
}

func (s *StopStore) Save(ctx context.Context, st journey.Stop) error {
	if _, err := s.db.ExecContext(ctx, s.layout.upsertQuery(), st.ID, st.Name, st.Latitude, st.Longitude, st.Area); err != nil {
		return fmt.Errorf("save stop %q: %w", st.ID, err)
	}
	return nil
}

func (s *StopStore) Update(ctx context.Context, st journey.Stop) error {
	res, err := s.db.ExecContext(ctx, s.layout.updateQuery(), st.ID, st.Name, st.Latitude, st.Longitude, st.Area)
	if err != nil {
		return fmt.Errorf("update stop %q: %w", st.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stop %q: %w", st.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("stop %q: %w", st.ID, journey.ErrStopNotFound)
	}
	return nil
}

func (s *StopStore) query(ctx context.Context, q string, args ...any) ([]journey.Stop, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []journey.Stop
	for rows.Next() {
		var st journey.Stop
		if err := rows.Scan(&st.ID, &st.Name, &st.Latitude, &st.Longitude, &st.Area); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
