package weather

import (
	"math"
	"strings"
)

// Modifiers are the per-reading scoring adjustments handed to the ranker.
// OutdoorPenalty may be negative when the weather favours being outside.
type Modifiers struct {
	OutdoorPenalty   float64 `json:"outdoor_penalty"`
	IndoorBonus      float64 `json:"indoor_bonus"`
	WalkabilityDelta float64 `json:"walkability_delta"`
	SafetyDelta      float64 `json:"safety_delta"`
	Hazardous        bool    `json:"hazardous"`
	Warning          string  `json:"warning,omitempty"`
	Recommendation   string  `json:"recommendation,omitempty"`
}

type precipEffect struct {
	outdoor, indoor, walk, safety float64
	hazardous                     bool
	warning, recommendation       string
}

var precipEffects = map[Precipitation]precipEffect{
	PrecipNone:      {},
	PrecipDrizzle:   {outdoor: 10, indoor: 5, walk: -5},
	PrecipRain:      {outdoor: 25, indoor: 15, walk: -15, safety: -5, recommendation: "Indoor zones recommended"},
	PrecipHeavyRain: {outdoor: 40, indoor: 20, walk: -25, safety: -10, warning: "Heavy rain", recommendation: "Stay near shelter"},
	PrecipSnow:      {outdoor: 35, indoor: 20, walk: -25, safety: -15, warning: "Snow and slippery streets", recommendation: "Indoor zones recommended"},
	PrecipStorm:     {outdoor: 60, indoor: 25, walk: -40, safety: -30, hazardous: true, warning: "Storm conditions, avoid exposed areas", recommendation: "Stay indoors"},
}

// Adapter thresholds.
const (
	defaultHeatC          = 35.0
	defaultHazardHeatC    = 40.0
	defaultColdC          = -5.0
	defaultStrongWindKph  = 50.0
	defaultHazardWindKph  = 90.0
	pleasantMinC          = 15.0
	pleasantMaxC          = 28.0
	pleasantOutdoorBonus  = 10.0
	maxOutdoorPenalty     = 60.0
	maxIndoorBonus        = 30.0
	nightSafetyDelta      = -5.0
	nightWalkabilityDelta = -5.0
)

// Adapter translates readings into Modifiers. The zero value is not usable;
// build one with NewAdapter.
type Adapter struct {
	heatC         float64
	hazardHeatC   float64
	coldC         float64
	strongWindKph float64
	hazardWindKph float64
}

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithHeatThresholds sets the temperatures at which heat is penalized and considered hazardous.
func WithHeatThresholds(heatC, hazardC float64) Option {
	return func(a *Adapter) {
		if hazardC >= heatC {
			a.heatC, a.hazardHeatC = heatC, hazardC
		}
	}
}

// WithWindThresholds sets the wind speeds at which wind is penalized and considered hazardous.
func WithWindThresholds(strongKph, hazardKph float64) Option {
	return func(a *Adapter) {
		if strongKph > 0 && hazardKph >= strongKph {
			a.strongWindKph, a.hazardWindKph = strongKph, hazardKph
		}
	}
}

// NewAdapter creates an adapter with default thresholds adjusted by opts.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		heatC:         defaultHeatC,
		hazardHeatC:   defaultHazardHeatC,
		coldC:         defaultColdC,
		strongWindKph: defaultStrongWindKph,
		hazardWindKph: defaultHazardWindKph,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Modifiers computes the adjustments for r. A nil reading yields neutral modifiers.
func (a *Adapter) Modifiers(r *Reading) Modifiers {
	if r == nil {
		return Modifiers{}
	}
	eff := precipEffects[r.Precipitation]
	m := Modifiers{
		OutdoorPenalty:   eff.outdoor,
		IndoorBonus:      eff.indoor,
		WalkabilityDelta: eff.walk,
		SafetyDelta:      eff.safety,
		Hazardous:        eff.hazardous,
		Recommendation:   eff.recommendation,
	}
	var warnings []string
	if eff.warning != "" {
		warnings = append(warnings, eff.warning)
	}

	switch {
	case r.TemperatureC >= a.heatC:
		m.OutdoorPenalty += 20
		m.IndoorBonus += 10
		m.WalkabilityDelta -= 10
		m.SafetyDelta -= 5
		warnings = append(warnings, "Extreme heat")
		if r.TemperatureC >= a.hazardHeatC {
			m.Hazardous = true
		}
		if m.Recommendation == "" {
			m.Recommendation = "Seek shade and air-conditioned zones"
		}
	case r.TemperatureC <= a.coldC:
		m.OutdoorPenalty += 15
		m.IndoorBonus += 10
		m.WalkabilityDelta -= 10
		warnings = append(warnings, "Freezing temperatures")
	}

	if r.WindKph >= a.strongWindKph {
		m.OutdoorPenalty += 15
		m.SafetyDelta -= 10
		warnings = append(warnings, "Strong wind")
		if r.WindKph >= a.hazardWindKph {
			m.Hazardous = true
		}
	}

	if !r.IsDay {
		m.SafetyDelta += nightSafetyDelta
		m.WalkabilityDelta += nightWalkabilityDelta
	}

	if a.pleasant(r) {
		m.OutdoorPenalty = -pleasantOutdoorBonus
		m.Recommendation = "Great weather for outdoor zones"
	}

	m.OutdoorPenalty = math.Min(m.OutdoorPenalty, maxOutdoorPenalty)
	m.IndoorBonus = math.Min(m.IndoorBonus, maxIndoorBonus)
	m.Warning = strings.Join(warnings, "; ")
	return m
}

func (a *Adapter) pleasant(r *Reading) bool {
	return r.IsDay &&
		(r.Precipitation == PrecipNone || r.Precipitation == "") &&
		r.TemperatureC >= pleasantMinC && r.TemperatureC <= pleasantMaxC &&
		r.WindKph < a.strongWindKph
}
