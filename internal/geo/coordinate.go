// Package geo provides coordinates, great-circle distances and the one-shot
// location probe used to centre the map and measure distances to shops.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// Coordinate is an immutable latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// NewCoordinate returns a Coordinate after checking the ranges.
func NewCoordinate(lat, lng float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("coordinate (%f, %f) out of range", lat, lng)
	}
	return c, nil
}

// Valid reports whether the latitude is within [-90, 90] and the longitude
// within [-180, 180].
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// String formats the coordinate as "lat,lng" with six decimals, the form map
// deep links expect.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// DistanceKm returns the great-circle distance between a and b in kilometres
// using the haversine formula.
func DistanceKm(a, b Coordinate) float64 {
	φ1 := a.Latitude * math.Pi / 180
	φ2 := b.Latitude * math.Pi / 180
	Δφ := (b.Latitude - a.Latitude) * math.Pi / 180
	Δλ := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
