package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula
const EarthRadiusKm = 6371.0

// DefaultNearThresholdKm is the on-route distance used for traffic signals
const DefaultNearThresholdKm = 0.5

// Point represents a geographic coordinate in degrees
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// NewPoint creates a Point from latitude and longitude values
func NewPoint(latitude, longitude float64) Point {
	return Point{Latitude: latitude, Longitude: longitude}
}

// DistanceKm calculates great-circle distance between two points using the Haversine formula.
// Coordinates outside [-90,90]/[-180,180] are a caller error and are not checked.
func DistanceKm(a, b Point) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dlat := (b.Latitude - a.Latitude) * math.Pi / 180
	dlon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Midpoint returns the arithmetic midpoint of two coordinates
func Midpoint(a, b Point) Point {
	return Point{
		Latitude:  (a.Latitude + b.Latitude) / 2,
		Longitude: (a.Longitude + b.Longitude) / 2,
	}
}

// IsNearPolyline reports whether point lies within thresholdKm of the polyline.
//
// Each segment is checked at its two endpoints and its arithmetic midpoint only, and the point is near
// when the smallest of those distances is strictly below the threshold. Long segments can therefore
// miss a point close to their interior away from the midpoint. Map clients highlight signals with the
// same rule, so it is kept as is.
func IsNearPolyline(point Point, line []Point, thresholdKm float64) bool {
	for i := 0; i < len(line)-1; i++ {
		a, b := line[i], line[i+1]

		d := math.Min(DistanceKm(point, a), DistanceKm(point, b))
		d = math.Min(d, DistanceKm(point, Midpoint(a, b)))
		if d < thresholdKm {
			return true
		}
	}
	return false
}

// Bounds is an axis-aligned lat/lng box
type Bounds struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// BoundsOf returns the smallest box containing all points. ok is false for an empty slice.
func BoundsOf(points []Point) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}

	b = Bounds{SouthWest: points[0], NorthEast: points[0]}
	for _, p := range points[1:] {
		b.SouthWest.Latitude = math.Min(b.SouthWest.Latitude, p.Latitude)
		b.SouthWest.Longitude = math.Min(b.SouthWest.Longitude, p.Longitude)
		b.NorthEast.Latitude = math.Max(b.NorthEast.Latitude, p.Latitude)
		b.NorthEast.Longitude = math.Max(b.NorthEast.Longitude, p.Longitude)
	}
	return b, true
}

// Pad extends the box on every side by ratio times its height and width
func (b Bounds) Pad(ratio float64) Bounds {
	dLat := (b.NorthEast.Latitude - b.SouthWest.Latitude) * ratio
	dLng := (b.NorthEast.Longitude - b.SouthWest.Longitude) * ratio

	return Bounds{
		SouthWest: Point{Latitude: b.SouthWest.Latitude - dLat, Longitude: b.SouthWest.Longitude - dLng},
		NorthEast: Point{Latitude: b.NorthEast.Latitude + dLat, Longitude: b.NorthEast.Longitude + dLng},
	}
}

// Center returns the midpoint of the box
func (b Bounds) Center() Point {
	return Midpoint(b.SouthWest, b.NorthEast)
}

// EncodePolyline encodes points as a Google encoded polyline string
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes a Google encoded polyline string to a point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
	}
	return points, nil
}
