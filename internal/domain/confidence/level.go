package confidence

import (
	"math"

	"github.com/okian/zonetrust/internal/domain/model"
)

// Level thresholds (inclusive lower bounds).
const (
	highThreshold     = 80.0
	mediumThreshold   = 60.0
	lowThreshold      = 40.0
	degradedThreshold = 20.0
)

// LevelForScore maps a score onto its confidence level.
func LevelForScore(score float64) model.ConfidenceLevel {
	switch {
	case math.IsNaN(score):
		return model.LevelUnknown
	case score >= highThreshold:
		return model.LevelHigh
	case score >= mediumThreshold:
		return model.LevelMedium
	case score >= lowThreshold:
		return model.LevelLow
	case score >= degradedThreshold:
		return model.LevelDegraded
	default:
		return model.LevelUnknown
	}
}

// DeriveState picks the operational state. An active hazard always wins.
func DeriveState(score float64, hazardActive, anomaly bool) model.OperationalState {
	switch {
	case hazardActive:
		return model.StateOffline
	case score < degradedThreshold:
		return model.StateDegraded
	case anomaly:
		return model.StateDegraded
	default:
		return model.StateActive
	}
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// sanitize forces a score from storage or upstream into [ScoreFloor, ScoreCeiling].
func sanitize(score float64) float64 {
	switch {
	case math.IsNaN(score), math.IsInf(score, -1):
		return ScoreFloor
	case math.IsInf(score, 1):
		return ScoreCeiling
	}
	return clamp(score, ScoreFloor, ScoreCeiling)
}

// ClampScore exposes the floor/ceiling clamp for callers holding raw scores.
func ClampScore(score float64) float64 { return sanitize(score) }
