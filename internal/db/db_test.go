package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/geo"
	"tripnav/internal/journey"
)

func TestWithDBName(t *testing.T) {
	tests := []struct {
		name, dsn, db, want string
	}{
		{"replaces path", "postgres://u:p@db:5432/postgres?sslmode=disable", "gtfs_lagos_2026", "postgres://u:p@db:5432/gtfs_lagos_2026?sslmode=disable"},
		{"postgresql scheme", "postgresql://db/old", "/new", "postgresql://db/new"},
		{"no credentials", "postgres://db:5432/old", "new", "postgres://db:5432/new"},
		{"missing scheme", "u@db:5432/old", "new", "postgres://u@db:5432/new"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithDBName(tt.dsn, tt.db)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := WithDBName("", "x")
	assert.Error(t, err)
	_, err = WithDBName("mysql://db/old", "new")
	assert.Error(t, err)
}

func TestLayoutQueries(t *testing.T) {
	assert.Contains(t, layoutLatLon.selectStops(), "COALESCE(stop_lat, 0)")
	assert.Contains(t, layoutLatLon.nearbyQuery(), "stop_lat BETWEEN $1 AND $2")
	assert.NotContains(t, layoutLatLon.nearbyQuery(), "ST_DWithin")
	assert.Contains(t, layoutLatLon.upsertQuery(), "ON CONFLICT (stop_id)")

	assert.Contains(t, layoutPostGIS.selectStops(), "ST_Y(stop_loc::geometry)")
	assert.Contains(t, layoutPostGIS.nearbyQuery(), "ST_DWithin(stop_loc, ST_SetSRID(ST_MakePoint($6, $5), 4326)::geography, $7)")
	assert.Contains(t, layoutPostGIS.upsertQuery(), "stop_loc = EXCLUDED.stop_loc")
	assert.Contains(t, layoutPostGIS.updateQuery(), "WHERE stop_id = $1")
}

func TestWithinRadius(t *testing.T) {
	center := journey.Location{Latitude: 6.5244, Longitude: 3.3792}
	at := func(id string, meters, bearing float64) journey.Stop {
		lat, lon := geo.Offset(center.Latitude, center.Longitude, meters, bearing)
		return journey.Stop{ID: id, Latitude: lat, Longitude: lon}
	}
	got := withinRadius([]journey.Stop{
		at("corner", 680, 45),
		at("b", 400, 90),
		at("a", 150, 0),
	}, center, 500)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}
