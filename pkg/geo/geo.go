// Package geo provides the small amount of spherical geometry the engine needs.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// Earth radius constants.
const (
	EarthRadiusKm = 6371.0

	// DefaultCellLevel buckets locations into cells of roughly 10km, which is
	// coarse enough to share a weather reading.
	DefaultCellLevel = 10
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether p is a finite coordinate inside the WGS84 range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p Point) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

// DistanceKm returns the great-circle distance between a and b in kilometres.
func DistanceKm(a, b Point) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusKm
}

// CellToken returns the s2 cell token containing p at the given level.
func CellToken(p Point, level int) string {
	if level < 0 || level > s2.MaxLevel {
		level = DefaultCellLevel
	}
	return s2.CellIDFromLatLng(p.latLng()).Parent(level).ToToken()
}
