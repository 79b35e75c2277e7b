// Package geo holds the spherical helpers shared by planning, tracking and
// deviation checks. Distances are meters, angles are degrees.
package geo

import (
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusMeters is the mean Earth radius used by every distance in the module.
const EarthRadiusMeters = 6371000.0

// Point is a bare WGS-84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

func toRad(d float64) float64 { return d * math.Pi / 180 }

// Distance returns the haversine great-circle distance in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Bearing returns the initial bearing from the first point to the second, in [0,360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	y := math.Sin(toRad(lon2-lon1)) * math.Cos(toRad(lat2))
	x := math.Cos(toRad(lat1))*math.Sin(toRad(lat2)) - math.Sin(toRad(lat1))*math.Cos(toRad(lat2))*math.Cos(toRad(lon2-lon1))
	brng := math.Atan2(y, x) * 180 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}

// Offset moves a point by the given distance along a bearing.
func Offset(lat, lon, meters, bearingDeg float64) (float64, float64) {
	d := meters / EarthRadiusMeters
	b := toRad(bearingDeg)
	lat1 := toRad(lat)
	lon1 := toRad(lon)
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(b))
	lon2 := lon1 + math.Atan2(math.Sin(b)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
	return lat2 * 180 / math.Pi, lon2 * 180 / math.Pi
}

// PointToSegment returns the distance in meters from p to the segment a-b and
// the clamped projection parameter t in [0,1]. It projects on a local
// equirectangular plane centred on p, which is accurate at city scale.
func PointToSegment(p, a, b Point) (float64, float64) {
	cosLat := math.Cos(toRad(p.Lat))
	toXY := func(q Point) (x, y float64) {
		y = toRad(q.Lat-p.Lat) * EarthRadiusMeters
		x = toRad(q.Lon-p.Lon) * EarthRadiusMeters * cosLat
		return
	}
	x0, y0 := toXY(a)
	x1, y1 := toXY(b)
	dx := x1 - x0
	dy := y1 - y0
	segLen2 := dx*dx + dy*dy
	t := 0.0
	if segLen2 > 0 {
		t = -(x0*dx + y0*dy) / segLen2
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	px := x0 + t*dx
	py := y0 + t*dy
	return math.Sqrt(px*px + py*py), t
}

// CumulativeDistances returns the running haversine length at every vertex.
func CumulativeDistances(pts []Point) []float64 {
	n := len(pts)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += Distance(pts[i-1].Lat, pts[i-1].Lon, pts[i].Lat, pts[i].Lon)
		cum[i] = sum
	}
	return cum
}

// Interpolate finds the point dist meters along the polyline and the bearing
// of the segment it falls on. cum must come from CumulativeDistances(pts).
func Interpolate(pts []Point, cum []float64, dist float64) (Point, float64) {
	n := len(pts)
	if n == 0 {
		return Point{}, 0
	}
	if n == 1 || cum[n-1] == 0 {
		return pts[0], 0
	}
	if dist <= 0 {
		return pts[0], Bearing(pts[0].Lat, pts[0].Lon, pts[1].Lat, pts[1].Lon)
	}
	if dist >= cum[n-1] {
		return pts[n-1], Bearing(pts[n-2].Lat, pts[n-2].Lon, pts[n-1].Lat, pts[n-1].Lon)
	}
	i := 1
	for i < n && cum[i] < dist {
		i++
	}
	p0, p1 := pts[i-1], pts[i]
	brng := Bearing(p0.Lat, p0.Lon, p1.Lat, p1.Lon)
	span := cum[i] - cum[i-1]
	if span == 0 {
		return p0, brng
	}
	frac := (dist - cum[i-1]) / span
	return Point{
		Lat: p0.Lat + (p1.Lat-p0.Lat)*frac,
		Lon: p0.Lon + (p1.Lon-p0.Lon)*frac,
	}, brng
}

// DistanceToPolyline is the smallest point-to-segment distance from p to the line.
func DistanceToPolyline(p Point, pts []Point) float64 {
	switch len(pts) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p.Lat, p.Lon, pts[0].Lat, pts[0].Lon)
	}
	best := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		d, _ := PointToSegment(p, pts[i-1], pts[i])
		if d < best {
			best = d
		}
	}
	return best
}

// EncodePolyline encodes points with the Google polyline algorithm.
func EncodePolyline(pts []Point) string {
	coords := make([][]float64, len(pts))
	for i, p := range pts {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline is the inverse of EncodePolyline.
func DecodePolyline(s string) ([]Point, error) {
	coords, _, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, err
	}
	pts := make([]Point, len(coords))
	for i, c := range coords {
		pts[i] = Point{Lat: c[0], Lon: c[1]}
	}
	return pts, nil
}
