// Package confidence turns a stream of intel reports into a decayed, bounded
// trust score per zone.
//
// Everything here is a pure computation over immutable inputs. Engine.Apply
// and Engine.Tick are read-modify-write over a zone's state; callers must run
// at most one update per zone at a time or updates will be lost.
package confidence

import (
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
)

// Score bounds and tuning defaults.
const (
	ScoreFloor   = 20.0
	ScoreCeiling = 100.0

	defaultDecayRatePerDay = 2.0
	defaultDecayGrace      = 24 * time.Hour

	defaultMinTrustWeight        = 0.3
	defaultMaxTrustWeight        = 1.5
	defaultDiminishingStep       = 0.15
	defaultDiminishingFloor      = 0.2
	defaultMaxBoostPerSubmission = 15.0
	defaultMaxBoostPer24h        = 30.0

	defaultConflictWindow    = 6 * time.Hour
	defaultConflictThreshold = 3
	defaultConflictPenalty   = 15.0

	defaultHazardWindow    = 24 * time.Hour
	defaultHazardThreshold = 2
	defaultHazardDuration  = 7 * 24 * time.Hour
	defaultHazardPenalty   = 30.0

	defaultAnomalyPenalty = 10.0

	rollingWindow = 24 * time.Hour
)

// Params holds every threshold the engine uses.
type Params struct {
	DecayRatePerDay float64
	DecayGrace      time.Duration

	MinTrustWeight        float64
	MaxTrustWeight        float64
	DiminishingStep       float64
	DiminishingFloor      float64
	MaxBoostPerSubmission float64
	MaxBoostPer24h        float64
	BaseBoost             map[model.IntelType]float64

	ConflictWindow    time.Duration
	ConflictThreshold int
	ConflictPenalty   float64

	HazardWindow    time.Duration
	HazardThreshold int
	HazardDuration  time.Duration
	HazardPenalty   float64
	CautionPenalty  map[model.Severity]float64

	AnomalyPenalty float64
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		DecayRatePerDay:       defaultDecayRatePerDay,
		DecayGrace:            defaultDecayGrace,
		MinTrustWeight:        defaultMinTrustWeight,
		MaxTrustWeight:        defaultMaxTrustWeight,
		DiminishingStep:       defaultDiminishingStep,
		DiminishingFloor:      defaultDiminishingFloor,
		MaxBoostPerSubmission: defaultMaxBoostPerSubmission,
		MaxBoostPer24h:        defaultMaxBoostPer24h,
		BaseBoost: map[model.IntelType]float64{
			model.IntelVerification:    12,
			model.IntelPriceSubmission: 8,
			model.IntelQuietConfirmed:  6,
			model.IntelCrowdSurge:      5,
			model.IntelHassleReport:    4,
			model.IntelConstruction:    3,
			model.IntelHazardReport:    0,
		},
		ConflictWindow:    defaultConflictWindow,
		ConflictThreshold: defaultConflictThreshold,
		ConflictPenalty:   defaultConflictPenalty,
		HazardWindow:      defaultHazardWindow,
		HazardThreshold:   defaultHazardThreshold,
		HazardDuration:    defaultHazardDuration,
		HazardPenalty:     defaultHazardPenalty,
		CautionPenalty: map[model.Severity]float64{
			model.SeverityLow:    2,
			model.SeverityMedium: 5,
			model.SeverityHigh:   10,
		},
		AnomalyPenalty: defaultAnomalyPenalty,
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithDecayRate sets the points lost per day once the grace window has passed.
func WithDecayRate(pointsPerDay float64) Option {
	return func(e *Engine) {
		if pointsPerDay > 0 {
			e.params.DecayRatePerDay = pointsPerDay
		}
	}
}

// WithDecayGrace sets how long fresh intel is immune to decay.
func WithDecayGrace(grace time.Duration) Option {
	return func(e *Engine) {
		if grace >= 0 {
			e.params.DecayGrace = grace
		}
	}
}

// WithConflictThreshold sets how many contradicting pairs trigger the penalty.
func WithConflictThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.params.ConflictThreshold = n
		}
	}
}

// WithHazardThreshold sets how many hazard reports in the window trip the kill switch.
func WithHazardThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.params.HazardThreshold = n
		}
	}
}

// WithParams replaces the whole parameter set.
func WithParams(p Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}
