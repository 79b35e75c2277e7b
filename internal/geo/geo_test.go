package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
		tolerance              float64
	}{
		{"same point", 6.5244, 3.3792, 6.5244, 3.3792, 0, 0.001},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 5},
		{"one degree of longitude at equator", 0, 0, 0, 1, 111195, 5},
		{"Lagos Ikeja to Yaba", 6.6018, 3.3515, 6.5095, 3.3711, 10490, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.tolerance)
		})
	}
}

func TestBearing(t *testing.T) {
	assert.InDelta(t, 0.0, Bearing(6.0, 3.0, 7.0, 3.0), 0.5)
	assert.InDelta(t, 90.0, Bearing(0.0, 3.0, 0.0, 4.0), 0.5)
	assert.InDelta(t, 180.0, Bearing(7.0, 3.0, 6.0, 3.0), 0.5)
	assert.InDelta(t, 270.0, Bearing(0.0, 4.0, 0.0, 3.0), 0.5)
}

func TestOffsetRoundTrip(t *testing.T) {
	lat, lon := Offset(6.5, 3.35, 600, 45)
	assert.InDelta(t, 600, Distance(6.5, 3.35, lat, lon), 0.5)
	assert.InDelta(t, 45, Bearing(6.5, 3.35, lat, lon), 0.5)
}

func TestPointToSegment(t *testing.T) {
	a := Point{Lat: 6.5, Lon: 3.3}
	b := Point{Lat: 6.5, Lon: 3.31}

	t.Run("perpendicular projection falls inside the segment", func(t *testing.T) {
		lat, lon := Offset(6.5, 3.305, 200, 0)
		d, frac := PointToSegment(Point{Lat: lat, Lon: lon}, a, b)
		assert.InDelta(t, 200, d, 2)
		assert.InDelta(t, 0.5, frac, 0.01)
	})

	t.Run("projection clamps to the nearest endpoint", func(t *testing.T) {
		lat, lon := Offset(6.5, 3.3, 300, 270)
		d, frac := PointToSegment(Point{Lat: lat, Lon: lon}, a, b)
		assert.InDelta(t, 300, d, 2)
		assert.Equal(t, 0.0, frac)
	})

	t.Run("degenerate segment", func(t *testing.T) {
		lat, lon := Offset(6.5, 3.3, 100, 90)
		d, frac := PointToSegment(Point{Lat: lat, Lon: lon}, a, a)
		assert.InDelta(t, 100, d, 1)
		assert.Equal(t, 0.0, frac)
	})
}

func TestInterpolate(t *testing.T) {
	pts := []Point{{Lat: 6.5, Lon: 3.3}, {Lat: 6.5, Lon: 3.31}, {Lat: 6.51, Lon: 3.31}}
	cum := CumulativeDistances(pts)
	require.Len(t, cum, 3)
	assert.Equal(t, 0.0, cum[0])

	start, _ := Interpolate(pts, cum, -5)
	assert.Equal(t, pts[0], start)

	end, _ := Interpolate(pts, cum, cum[2]+10)
	assert.Equal(t, pts[2], end)

	mid, brng := Interpolate(pts, cum, cum[1]/2)
	assert.InDelta(t, 3.305, mid.Lon, 1e-6)
	assert.InDelta(t, 90, brng, 0.5)
}

func TestDistanceToPolyline(t *testing.T) {
	pts := []Point{{Lat: 6.5, Lon: 3.3}, {Lat: 6.5, Lon: 3.31}}
	lat, lon := Offset(6.5, 3.305, 150, 180)
	assert.InDelta(t, 150, DistanceToPolyline(Point{Lat: lat, Lon: lon}, pts), 2)
	assert.True(t, DistanceToPolyline(Point{}, nil) > 1e300)
}

func TestPolylineRoundTrip(t *testing.T) {
	pts := []Point{{Lat: 6.52438, Lon: 3.37921}, {Lat: 6.60184, Lon: 3.35149}}
	encoded := EncodePolyline(pts)
	require.NotEmpty(t, encoded)

	decoded, err := DecodePolyline(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.InDelta(t, pts[1].Lat, decoded[1].Lat, 1e-5)
	assert.InDelta(t, pts[1].Lon, decoded[1].Lon, 1e-5)
}
