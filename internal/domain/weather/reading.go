// Package weather adapts an already-resolved current-weather reading into the
// small set of scoring adjustments the ranker consumes.
package weather

import (
	"fmt"
	"strings"
	"time"
)

// Precipitation is the coarse precipitation category of a reading.
type Precipitation string

// Precipitation categories, mildest first.
const (
	PrecipNone      Precipitation = "NONE"
	PrecipDrizzle   Precipitation = "DRIZZLE"
	PrecipRain      Precipitation = "RAIN"
	PrecipHeavyRain Precipitation = "HEAVY_RAIN"
	PrecipSnow      Precipitation = "SNOW"
	PrecipStorm     Precipitation = "STORM"
)

// Valid reports whether p is a known category.
func (p Precipitation) Valid() bool {
	switch p {
	case PrecipNone, PrecipDrizzle, PrecipRain, PrecipHeavyRain, PrecipSnow, PrecipStorm:
		return true
	}
	return false
}

// Reading is one current-weather observation for a location.
type Reading struct {
	TemperatureC  float64       `json:"temperature_c"`
	Precipitation Precipitation `json:"precipitation"`
	WindKph       float64       `json:"wind_kph"`
	IsDay         bool          `json:"is_day"`
	ObservedAt    time.Time     `json:"observed_at"`
}

// Validate checks that the reading carries plausible values.
func (r Reading) Validate() error {
	if !r.Precipitation.Valid() {
		return fmt.Errorf("%w: precipitation %q", ErrInvalidReading, r.Precipitation)
	}
	if r.TemperatureC < -90 || r.TemperatureC > 60 {
		return fmt.Errorf("%w: temperature %.1f", ErrInvalidReading, r.TemperatureC)
	}
	if r.WindKph < 0 || r.WindKph > 400 {
		return fmt.Errorf("%w: wind %.1f", ErrInvalidReading, r.WindKph)
	}
	return nil
}

// Summary formats the reading for display, e.g. "18°C, rain, wind 12 km/h".
// A nil reading yields "unavailable".
func Summary(r *Reading) string {
	if r == nil {
		return "unavailable"
	}
	precip := "clear"
	if r.Precipitation != "" && r.Precipitation != PrecipNone {
		precip = strings.ToLower(strings.ReplaceAll(string(r.Precipitation), "_", " "))
	}
	s := fmt.Sprintf("%.0f°C, %s, wind %.0f km/h", r.TemperatureC, precip, r.WindKph)
	if !r.IsDay {
		s += ", night"
	}
	return s
}
