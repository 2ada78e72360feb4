// Package geo holds the geographic value types shared across osmreach and the
// Web Mercator projection used for both bounding-box pruning and rendering.
package geo

import "math"

const (
	// EarthRadius is the spherical Web Mercator radius in meters
	EarthRadius = 6378137.0

	// MaxLatitude is the absolute latitude beyond which the projection diverges
	MaxLatitude = 85.06
)

// Location is a geographic position in decimal degrees (WGS84)
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point is a projected planar coordinate in meters
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project maps latitude/longitude in degrees to Web Mercator meters.
// Latitude is clamped to ±MaxLatitude first.
func Project(lat, lon float64) Point {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))

	x := EarthRadius * lon * math.Pi / 180
	y := EarthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))

	return Point{X: x, Y: y}
}

// ProjectLocation is Project for a Location value
func ProjectLocation(loc Location) Point {
	return Project(loc.Latitude, loc.Longitude)
}

// Unproject maps Web Mercator meters back to degrees
func Unproject(p Point) Location {
	lon := p.X / EarthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(p.Y/EarthRadius)) - math.Pi/2) * 180 / math.Pi
	return Location{Latitude: lat, Longitude: lon}
}

// Delta returns the per-axis difference p - other
func (p Point) Delta(other Point) (dx, dy float64) {
	return p.X - other.X, p.Y - other.Y
}

// WithinBox reports whether p lies strictly inside the axis-aligned box of
// half-width r centered on center. Each axis is tested independently.
func (p Point) WithinBox(center Point, r float64) bool {
	dx, dy := p.Delta(center)
	return math.Abs(dx) < r && math.Abs(dy) < r
}

// Near reports whether both coordinates of a and b differ by less than tol degrees
func Near(a, b Location, tol float64) bool {
	return math.Abs(a.Latitude-b.Latitude) < tol && math.Abs(a.Longitude-b.Longitude) < tol
}
